package tabular

import (
	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// DefaultDiscoveryThreshold is the array-field fraction an object needs to
// be proposed by Discover.
const DefaultDiscoveryThreshold = 0.5

// DiscoveryOptions parameterize Discover.
type DiscoveryOptions struct {
	// Threshold is the minimum fraction of array-valued fields. Zero means
	// DefaultDiscoveryThreshold.
	Threshold float64
	// IgnoreFields names scalar metadata fields left out of the fraction.
	IgnoreFields []string
}

// Discover scans the tree under root and returns, in pre-order, the object
// nodes that look columnar: at least one array-valued field, and array
// fields making up at least Threshold of the fields that are not ignored.
// It recurses into nested objects and into objects held in arrays.
func Discover(a *arena.Arena, root arena.NodeID, opts DiscoveryOptions) []arena.NodeID {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultDiscoveryThreshold
	}
	ignored := make(map[string]bool, len(opts.IgnoreFields))
	for _, name := range opts.IgnoreFields {
		ignored[name] = true
	}

	var found []arena.NodeID
	var walk func(id arena.NodeID)
	walk = func(id arena.NodeID) {
		tag := a.Tag(id)
		if !tag.IsContainer() {
			return
		}
		first, n := a.FirstChild(id), a.ChildCount(id)

		if tag == value.TagObject {
			arrays, considered := 0, 0
			for i := 0; i < n; i++ {
				child := first + arena.NodeID(i)
				ct := a.Tag(child)
				if name, _ := a.Key(child); ignored[name] && !ct.IsContainer() {
					continue
				}
				considered++
				if ct == value.TagArray {
					arrays++
				}
			}
			if arrays > 0 && float64(arrays) >= threshold*float64(considered) {
				found = append(found, id)
			}
		}

		for i := 0; i < n; i++ {
			walk(first + arena.NodeID(i))
		}
	}
	walk(root)
	return found
}
