package sim

import (
	"testing"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(i int) Entry {
	return Entry{State: dynamo.State{float64(i)}, Control: dynamo.Control{0}, Time: float64(i)}
}

func TestHistoryUnbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 100; i++ {
		h.Append(entryAt(i))
	}
	assert.Equal(t, 100, h.Len())
	assert.Equal(t, 0, h.Dropped())
	assert.Equal(t, 0.0, h.At(0).Time)

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, 99.0, last.Time)
}

func TestHistoryCapacity(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(entryAt(i))
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Dropped())
	assert.Equal(t, []float64{2, 3, 4}, h.Times())
}

func TestHistoryCapacityWrapsInPlace(t *testing.T) {
	h := NewHistory(4)
	for i := 0; i < 11; i++ {
		h.Append(entryAt(i))
	}
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 7, h.Dropped())
	assert.Equal(t, []float64{7, 8, 9, 10}, h.Times())
	assert.Equal(t, 7.0, h.At(0).Time)
	assert.Equal(t, []dynamo.State{{7}, {8}, {9}, {10}}, h.States())

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, 10.0, last.Time)

	entries := h.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, 7.0, entries[0].Time)
	assert.Equal(t, 10.0, entries[3].Time)

	h.Truncate(2)
	assert.Equal(t, []float64{9, 10}, h.Times())
	assert.Equal(t, 9, h.Dropped())

	for i := 11; i < 15; i++ {
		h.Append(entryAt(i))
	}
	assert.Equal(t, []float64{11, 12, 13, 14}, h.Times())
	assert.Equal(t, 11, h.Dropped())
}

func TestHistoryTruncate(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 10; i++ {
		h.Append(entryAt(i))
	}

	h.Truncate(20)
	assert.Equal(t, 10, h.Len())

	h.Truncate(4)
	assert.Equal(t, []float64{6, 7, 8, 9}, h.Times())
	assert.Equal(t, 6, h.Dropped())

	h.Truncate(-1)
	assert.Equal(t, 0, h.Len())
	_, ok := h.Last()
	assert.False(t, ok)
}

func TestHistoryAlignedViews(t *testing.T) {
	h := NewHistory(0)
	h.Append(Entry{State: dynamo.State{1, 2}, Control: dynamo.Control{3}, Torque: 4, Time: 0})
	h.Append(Entry{State: dynamo.State{5, 6}, Control: dynamo.Control{7}, Torque: 8, Time: 0.1})

	assert.Equal(t, []dynamo.State{{1, 2}, {5, 6}}, h.States())
	assert.Equal(t, []dynamo.Control{{3}, {7}}, h.Controls())
	assert.Equal(t, []float64{4, 8}, h.Torques())
	assert.Equal(t, []float64{0, 0.1}, h.Times())

	entries := h.Entries()
	entries[0].Time = 42
	assert.Equal(t, 0.0, h.At(0).Time)

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Dropped())
}
