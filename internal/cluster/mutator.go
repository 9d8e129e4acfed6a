package cluster

import (
	"context"
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/rs/zerolog"
)

// affinityWeight mirrors the reference client's preferred-scheduling weight.
const affinityWeight = 10

// cpuLimitBuffer is the fractional headroom applied to CPU limits over
// requests.
const cpuLimitBuffer = 1.2

// KubernetesMutator is the default Mutator, backed by client-go. It handles
// both Deployment- and StatefulSet-shaped workloads.
type KubernetesMutator struct {
	clientset *kubernetes.Clientset
	namespace string
	log       zerolog.Logger
}

// NewKubernetesMutator builds a client-go clientset either from in-cluster
// config or the local kubeconfig, per --in-cluster.
func NewKubernetesMutator(namespace string, inCluster bool, log zerolog.Logger) (*KubernetesMutator, error) {
	var cfg *rest.Config
	var err error
	if inCluster {
		cfg, err = rest.InClusterConfig()
	} else {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("cluster: configuring kubernetes client: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: building clientset: %w", err)
	}
	return &KubernetesMutator{clientset: clientset, namespace: namespace, log: log}, nil
}

// Clientset exposes the underlying client-go clientset so other
// cluster-facing components (e.g. KubernetesClassifier) can share it
// instead of building their own.
func (m *KubernetesMutator) Clientset() *kubernetes.Clientset { return m.clientset }

func (m *KubernetesMutator) GetNodes(ctx context.Context) ([]Node, error) {
	list, err := m.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("cluster: listing nodes: %w", err)
	}
	nodes := make([]Node, 0, len(list.Items))
	for _, n := range list.Items {
		allocatable := map[string]string{}
		for k, v := range n.Status.Allocatable {
			allocatable[string(k)] = v.String()
		}
		capacity := map[string]string{}
		for k, v := range n.Status.Capacity {
			capacity[string(k)] = v.String()
		}
		nodes = append(nodes, Node{
			Name:        n.Name,
			Labels:      n.Labels,
			Allocatable: allocatable,
			Capacity:    capacity,
		})
	}
	return nodes, nil
}

func (m *KubernetesMutator) GetCurrentResources(ctx context.Context, appName string) (*ResourceSpec, error) {
	if dep, err := m.clientset.AppsV1().Deployments(m.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		return resourceSpecFromPodSpec(&dep.Spec.Template.Spec, dep.Spec.Replicas), nil
	} else if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("cluster: getting deployment %s: %w", appName, err)
	}

	if sts, err := m.clientset.AppsV1().StatefulSets(m.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		return resourceSpecFromPodSpec(&sts.Spec.Template.Spec, sts.Spec.Replicas), nil
	} else if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("cluster: getting statefulset %s: %w", appName, err)
	}
	return nil, nil
}

func resourceSpecFromPodSpec(spec *corev1.PodSpec, replicas *int32) *ResourceSpec {
	out := &ResourceSpec{Memory: "512Mi", Replicas: 1, NodeAffinities: map[string][]string{}}
	if replicas != nil {
		out.Replicas = int(*replicas)
	}
	if len(spec.Containers) > 0 {
		req := spec.Containers[0].Resources.Requests
		if cpu, ok := req[corev1.ResourceCPU]; ok {
			out.CPU = cpu.AsApproximateFloat64()
		}
		if mem, ok := req[corev1.ResourceMemory]; ok {
			out.Memory = fmt.Sprintf("%dMi", mem.Value()/(1024*1024))
		}
	}
	if spec.Affinity != nil && spec.Affinity.NodeAffinity != nil {
		for _, term := range spec.Affinity.NodeAffinity.PreferredDuringSchedulingIgnoredDuringExecution {
			for _, expr := range term.Preference.MatchExpressions {
				if expr.Key == "kubernetes.io/hostname" {
					out.NodeAffinities[fmt.Sprintf("zone-%d", len(out.NodeAffinities)+1)] = expr.Values
				}
			}
		}
	}
	return out
}

func (m *KubernetesMutator) ApplyResourceAction(ctx context.Context, appName string, cpu float64, memory string, replicas int, nodeAffinities map[string][]string) (bool, error) {
	if dep, err := m.clientset.AppsV1().Deployments(m.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		applyPodSpec(&dep.Spec.Template.Spec, cpu, memory, nodeAffinities)
		if replicas > 0 {
			r := int32(replicas)
			dep.Spec.Replicas = &r
		}
		if _, err := m.clientset.AppsV1().Deployments(m.namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
			return false, fmt.Errorf("cluster: updating deployment %s: %w", appName, err)
		}
		return true, nil
	} else if !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("cluster: getting deployment %s: %w", appName, err)
	}

	if sts, err := m.clientset.AppsV1().StatefulSets(m.namespace).Get(ctx, appName, metav1.GetOptions{}); err == nil {
		applyPodSpec(&sts.Spec.Template.Spec, cpu, memory, nodeAffinities)
		if replicas > 0 {
			r := int32(replicas)
			sts.Spec.Replicas = &r
		}
		if _, err := m.clientset.AppsV1().StatefulSets(m.namespace).Update(ctx, sts, metav1.UpdateOptions{}); err != nil {
			return false, fmt.Errorf("cluster: updating statefulset %s: %w", appName, err)
		}
		return true, nil
	} else if !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("cluster: getting statefulset %s: %w", appName, err)
	}

	m.log.Error().Str("app", appName).Msg("no Deployment or StatefulSet found")
	return false, nil
}

func applyPodSpec(spec *corev1.PodSpec, cpu float64, memory string, nodeAffinities map[string][]string) {
	cpuQty := resource.MustParse(strconv.FormatFloat(cpu, 'f', -1, 64))
	cpuLimitQty := resource.MustParse(strconv.FormatFloat(cpu*cpuLimitBuffer, 'f', -1, 64))
	memQty := resource.MustParse(memory)

	for i := range spec.Containers {
		c := &spec.Containers[i]
		if c.Resources.Requests == nil {
			c.Resources.Requests = corev1.ResourceList{}
		}
		if c.Resources.Limits == nil {
			c.Resources.Limits = corev1.ResourceList{}
		}
		c.Resources.Requests[corev1.ResourceCPU] = cpuQty
		c.Resources.Limits[corev1.ResourceCPU] = cpuLimitQty
		c.Resources.Requests[corev1.ResourceMemory] = memQty
		c.Resources.Limits[corev1.ResourceMemory] = memQty
	}

	if len(nodeAffinities) == 0 {
		return
	}
	if spec.Affinity == nil {
		spec.Affinity = &corev1.Affinity{}
	}
	if spec.Affinity.NodeAffinity == nil {
		spec.Affinity.NodeAffinity = &corev1.NodeAffinity{}
	}
	var terms []corev1.PreferredSchedulingTerm
	for _, hosts := range nodeAffinities {
		terms = append(terms, corev1.PreferredSchedulingTerm{
			Weight: affinityWeight,
			Preference: corev1.NodeSelectorTerm{
				MatchExpressions: []corev1.NodeSelectorRequirement{
					{
						Key:      "kubernetes.io/hostname",
						Operator: corev1.NodeSelectorOpIn,
						Values:   hosts,
					},
				},
			},
		})
	}
	spec.Affinity.NodeAffinity.PreferredDuringSchedulingIgnoredDuringExecution = terms
}
