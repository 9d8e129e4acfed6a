package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppendAndLen(t *testing.T) {
	w := NewWriter()
	assert.Equal(t, 0, w.Len())
	w.Append(Record{Iteration: 1, CPU: 0.5, Replicas: 2})
	w.Append(Record{Iteration: 2, CPU: 1.0, Replicas: 3})
	assert.Equal(t, 2, w.Len())
}

func TestBytesIncludesHeaderAndRows(t *testing.T) {
	w := NewWriter()
	w.Append(Record{Iteration: 1, CPU: 0.5, MemoryMi: 512, Replicas: 2, Performance: 1.2, Reward: 0.8, SafeSetSize: -1, WithinBudget: true})
	b, err := w.Bytes()
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, "iteration")
	assert.Contains(t, s, "cpu_cores")
}

func TestBytesEmptyWriterProducesNoError(t *testing.T) {
	w := NewWriter()
	_, err := w.Bytes()
	require.NoError(t, err)
}
