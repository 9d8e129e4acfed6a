package cluster

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/rs/zerolog"
)

// KubernetesClassifier identifies a workload as "batch" or "microservice"
// by probing for Jobs/CronJobs, Services/Ingresses, and Deployment labels,
// defaulting to "microservice" when ambiguous.
type KubernetesClassifier struct {
	clientset *kubernetes.Clientset
	namespace string
	log       zerolog.Logger
}

// NewKubernetesClassifier builds a classifier sharing the mutator's
// clientset conventions.
func NewKubernetesClassifier(clientset *kubernetes.Clientset, namespace string, log zerolog.Logger) *KubernetesClassifier {
	return &KubernetesClassifier{clientset: clientset, namespace: namespace, log: log}
}

func (c *KubernetesClassifier) IdentifyAppType(ctx context.Context, appName string) (string, error) {
	opts := metav1.ListOptions{FieldSelector: "metadata.name=" + appName}

	if jobs, err := c.clientset.BatchV1().Jobs(c.namespace).List(ctx, opts); err == nil && len(jobs.Items) > 0 {
		return AppTypeBatch, nil
	}
	if cronJobs, err := c.clientset.BatchV1().CronJobs(c.namespace).List(ctx, opts); err == nil && len(cronJobs.Items) > 0 {
		return AppTypeBatch, nil
	}
	if svcs, err := c.clientset.CoreV1().Services(c.namespace).List(ctx, opts); err == nil && len(svcs.Items) > 0 {
		return AppTypeMicroservice, nil
	}
	if ingresses, err := c.clientset.NetworkingV1().Ingresses(c.namespace).List(ctx, opts); err == nil && len(ingresses.Items) > 0 {
		return AppTypeMicroservice, nil
	}
	if dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		for _, key := range []string{"app.kubernetes.io/component", "service", "microservice"} {
			if _, ok := dep.Labels[key]; ok {
				return AppTypeMicroservice, nil
			}
		}
	} else if !apierrors.IsNotFound(err) {
		c.log.Debug().Err(err).Msg("error checking deployment labels")
	}

	c.log.Info().Str("app", appName).Msg("could not definitively identify app type, defaulting to microservice")
	return AppTypeMicroservice, nil
}

// Characteristics probes stateful/recurring/resource-intensity signals,
// used only for log enrichment — never for bandit control flow.
func (c *KubernetesClassifier) Characteristics(ctx context.Context, appName string) (Characteristics, error) {
	appType, _ := c.IdentifyAppType(ctx, appName)
	out := Characteristics{AppType: appType}

	opts := metav1.ListOptions{FieldSelector: "metadata.name=" + appName}
	if stsList, err := c.clientset.AppsV1().StatefulSets(c.namespace).List(ctx, opts); err == nil && len(stsList.Items) > 0 {
		out.Stateful = true
	}
	if appType == AppTypeBatch {
		if cronJobs, err := c.clientset.BatchV1().CronJobs(c.namespace).List(ctx, opts); err == nil && len(cronJobs.Items) > 0 {
			out.Recurring = true
		}
	}
	if dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		profile := dep.Labels["resource-profile"]
		if profile == "" {
			profile = dep.Annotations["resource-profile"]
		}
		switch profile {
		case "network-intensive":
			out.NetworkIntensive = true
		case "memory-intensive":
			out.MemoryIntensive = true
		case "cpu-intensive":
			out.CPUIntensive = true
		}
	}
	return out, nil
}
