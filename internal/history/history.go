// Package history exports per-iteration orchestration records to CSV for
// offline analysis, using jszwec/csvutil the way the reference pipeline
// exports its run history.
package history

import (
	"fmt"
	"os"

	"github.com/jszwec/csvutil"
)

// Record is one orchestration iteration, flattened for CSV export.
type Record struct {
	Iteration     int     `csv:"iteration"`
	CPU           float64 `csv:"cpu_cores"`
	MemoryMi      float64 `csv:"memory_mi"`
	Replicas      int     `csv:"replicas"`
	Performance   float64 `csv:"performance"`
	Secondary     float64 `csv:"secondary"` // cost (public) or resource usage (private)
	Reward        float64 `csv:"reward"`
	SafeSetSize   int     `csv:"safe_set_size"` // -1 in public mode
	WithinBudget  bool    `csv:"within_budget"`
}

// Writer accumulates Records and flushes them to a CSV file on demand.
type Writer struct {
	records []Record
}

// NewWriter returns an empty history Writer.
func NewWriter() *Writer { return &Writer{} }

// Append records one iteration's outcome.
func (w *Writer) Append(r Record) { w.records = append(w.records, r) }

// Len reports how many records have been appended.
func (w *Writer) Len() int { return len(w.records) }

// Records returns the accumulated records in append order.
func (w *Writer) Records() []Record { return w.records }

// WriteFile marshals the accumulated records to CSV and writes them to
// path, overwriting any existing file.
func (w *Writer) WriteFile(path string) error {
	b, err := csvutil.Marshal(w.records)
	if err != nil {
		return fmt.Errorf("history: marshalling records: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("history: writing %s: %w", path, err)
	}
	return nil
}

// Bytes returns the CSV encoding of the accumulated records without
// touching the filesystem, for tests and in-process consumers.
func (w *Writer) Bytes() ([]byte, error) {
	b, err := csvutil.Marshal(w.records)
	if err != nil {
		return nil, fmt.Errorf("history: marshalling records: %w", err)
	}
	return b, nil
}
