package features

import (
	"fmt"
)

// FeatureSet is an ordered collection of distinct features. Its bucket list defines
// the layout of every feature vector built against it, so member features must not be
// reconfigured once the set is in use.
type FeatureSet struct {
	name     string
	features []Feature

	buckets []Bucket
	index   map[Bucket]int
}

// NewFeatureSet keeps the first feature of each ID in the order given.
func NewFeatureSet(name string, features ...Feature) *FeatureSet {
	fs := &FeatureSet{name: name}
	seen := make(map[ID]bool, len(features))
	for _, f := range features {
		if f == nil || seen[f.ID()] {
			continue
		}
		seen[f.ID()] = true
		fs.features = append(fs.features, f)
	}
	return fs
}

func (fs *FeatureSet) Name() string {
	return fs.name
}

func (fs *FeatureSet) Features() []Feature {
	return fs.features
}

// Feature returns the member feature with the given ID.
func (fs *FeatureSet) Feature(id ID) (Feature, bool) {
	for _, f := range fs.features {
		if f.ID() == id {
			return f, true
		}
	}
	return nil, false
}

// Buckets returns the concatenated buckets of all member features.
// The list is computed on first use and cached.
func (fs *FeatureSet) Buckets() []Bucket {
	if fs.buckets != nil {
		return fs.buckets
	}

	buckets := make([]Bucket, 0)
	index := make(map[Bucket]int)
	for _, f := range fs.features {
		for _, b := range f.Buckets() {
			if _, dup := index[b]; dup {
				continue
			}
			index[b] = len(buckets)
			buckets = append(buckets, b)
		}
	}
	fs.buckets = buckets
	fs.index = index
	return fs.buckets
}

// Len is the dimensionality of feature vectors over this set.
func (fs *FeatureSet) Len() int {
	return len(fs.Buckets())
}

// IndexOf returns the position of a bucket in Buckets.
func (fs *FeatureSet) IndexOf(b Bucket) (int, bool) {
	fs.Buckets()
	i, ok := fs.index[b]
	return i, ok
}

// Equal compares names and member features by ID and version.
func (fs *FeatureSet) Equal(other *FeatureSet) bool {
	if fs == other {
		return true
	}
	if fs == nil || other == nil || fs.name != other.name || len(fs.features) != len(other.features) {
		return false
	}
	for i, f := range fs.features {
		g := other.features[i]
		if f.ID() != g.ID() || f.Version() != g.Version() {
			return false
		}
	}
	return true
}

func (fs *FeatureSet) String() string {
	return fmt.Sprintf("%s(%d features, %d buckets)", fs.name, len(fs.features), fs.Len())
}
