package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func TestDiscover(t *testing.T) {
	doc := value.Object(
		value.F("name", value.String("report")),
		value.F("version", value.Int64(2)),
		value.F("series", value.Object(
			value.F("t", ints(1, 2)),
			value.F("v", ints(3, 4)),
			value.F("unit", value.String("ms")),
		)),
		value.F("batches", value.Array(
			value.Object(value.F("ids", ints(1)), value.F("label", value.String("a"))),
			value.Object(value.F("label", value.String("b"))),
		)),
	)
	a, roots := build(t, doc)
	root := roots[0]

	series, _ := a.Lookup(root, "series")
	batches, _ := a.Lookup(root, "batches")
	firstBatch, ok := a.Child(batches, 0)
	require.True(t, ok)

	got := Discover(a, root, DiscoveryOptions{})
	assert.Equal(t, []arena.NodeID{series, firstBatch}, got)

	// the root has 1 array in 4 fields; ignoring the scalar metadata lifts it to 1/2
	got = Discover(a, root, DiscoveryOptions{IgnoreFields: []string{"name", "version"}})
	assert.Equal(t, []arena.NodeID{root, series, firstBatch}, got)

	got = Discover(a, root, DiscoveryOptions{Threshold: 0.9})
	assert.Empty(t, got)

	// ignoring a container field has no effect
	got = Discover(a, root, DiscoveryOptions{IgnoreFields: []string{"series"}})
	assert.Equal(t, []arena.NodeID{series, firstBatch}, got)

	for _, id := range Discover(a, root, DiscoveryOptions{}) {
		_, err := NewView(a, id, WithLengthPolicy(Ragged))
		assert.NoError(t, err, "every candidate can back a view")
	}
}

func TestDiscover_NoCandidates(t *testing.T) {
	a, roots := build(t, value.Int64(1), value.Object(), value.Array())
	for _, root := range roots {
		assert.Empty(t, Discover(a, root, DiscoveryOptions{}))
	}
}
