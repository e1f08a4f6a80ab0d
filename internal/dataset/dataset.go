package dataset

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dotnet/mbmlbook-sub000/internal/features"
)

// Sparse is a ragged index/value layout: for each instance, the positions in
// FeatureSet.Buckets of its non-zero values, the values themselves, and their count.
type Sparse struct {
	Indices [][]int
	Values  [][]float64
	Counts  []int
}

// BucketCounts tallies how often a bucket was active for each label.
type BucketCounts struct {
	Bucket   features.Bucket
	Positive int
	Negative int
}

// FeatureHistogram groups bucket tallies by feature.
type FeatureHistogram struct {
	Feature features.ID
	Name    string
	Buckets []BucketCounts
}

// DataSet is a named, ordered list of instances over one feature set.
// Derived views are computed on first use and cached; neither the instances nor the
// feature set may change afterwards.
type DataSet struct {
	Name       string
	FeatureSet *features.FeatureSet
	Instances  []*Instance

	labels     []bool
	positives  []*Instance
	negatives  []*Instance
	dense      [][]float64
	personal   *Sparse
	shared     *Sparse
	histograms []FeatureHistogram
}

// New creates a data set. It takes ownership of instances.
func New(name string, fs *features.FeatureSet, instances []*Instance) *DataSet {
	return &DataSet{Name: name, FeatureSet: fs, Instances: instances}
}

func (ds *DataSet) Count() int {
	return len(ds.Instances)
}

// Labels returns one label per instance.
func (ds *DataSet) Labels() []bool {
	if ds.labels != nil {
		return ds.labels
	}
	ds.labels = make([]bool, len(ds.Instances))
	for i, inst := range ds.Instances {
		ds.labels[i] = inst.Label
	}
	return ds.labels
}

// PositiveInstances returns the instances labeled as replied to.
func (ds *DataSet) PositiveInstances() []*Instance {
	ds.splitByLabel()
	return ds.positives
}

// NegativeInstances returns the instances not replied to.
func (ds *DataSet) NegativeInstances() []*Instance {
	ds.splitByLabel()
	return ds.negatives
}

func (ds *DataSet) splitByLabel() {
	if ds.positives != nil {
		return
	}
	ds.positives = make([]*Instance, 0)
	ds.negatives = make([]*Instance, 0)
	for _, inst := range ds.Instances {
		if inst.Label {
			ds.positives = append(ds.positives, inst)
		} else {
			ds.negatives = append(ds.negatives, inst)
		}
	}
}

// PositiveRate is the share of positive instances, zero for an empty set.
func (ds *DataSet) PositiveRate() float64 {
	if ds.Count() == 0 {
		return 0
	}
	return float64(len(ds.PositiveInstances())) / float64(ds.Count())
}

// DenseValues returns one row per instance with a column per bucket of the feature set.
func (ds *DataSet) DenseValues() [][]float64 {
	if ds.dense != nil {
		return ds.dense
	}
	width := ds.FeatureSet.Len()
	ds.dense = make([][]float64, len(ds.Instances))
	for i, inst := range ds.Instances {
		row := make([]float64, width)
		for b, v := range inst.Values {
			if j, ok := ds.FeatureSet.IndexOf(b); ok {
				row[j] = v
			}
		}
		ds.dense[i] = row
	}
	return ds.dense
}

func (ds *DataSet) PersonalSparseIndices() [][]int    { return ds.personalSparse().Indices }
func (ds *DataSet) PersonalSparseValues() [][]float64 { return ds.personalSparse().Values }
func (ds *DataSet) PersonalSparseCounts() []int       { return ds.personalSparse().Counts }
func (ds *DataSet) SharedSparseIndices() [][]int      { return ds.sharedSparse().Indices }
func (ds *DataSet) SharedSparseValues() [][]float64   { return ds.sharedSparse().Values }
func (ds *DataSet) SharedSparseCounts() []int         { return ds.sharedSparse().Counts }

// PersonalSparse returns the sparse layout restricted to personal features.
func (ds *DataSet) PersonalSparse() *Sparse { return ds.personalSparse() }

// SharedSparse returns the sparse layout restricted to shared features.
func (ds *DataSet) SharedSparse() *Sparse { return ds.sharedSparse() }

func (ds *DataSet) personalSparse() *Sparse {
	if ds.personal == nil {
		ds.personal = ds.buildSparse(false)
	}
	return ds.personal
}

func (ds *DataSet) sharedSparse() *Sparse {
	if ds.shared == nil {
		ds.shared = ds.buildSparse(true)
	}
	return ds.shared
}

func (ds *DataSet) buildSparse(shared bool) *Sparse {
	sharedByFeature := make(map[features.ID]bool)
	for _, f := range ds.FeatureSet.Features() {
		sharedByFeature[f.ID()] = f.Shared()
	}

	sp := &Sparse{
		Indices: make([][]int, len(ds.Instances)),
		Values:  make([][]float64, len(ds.Instances)),
		Counts:  make([]int, len(ds.Instances)),
	}
	for i, inst := range ds.Instances {
		indices := make([]int, 0, len(inst.Values))
		for b, v := range inst.Values {
			if v == 0 || sharedByFeature[b.Feature] != shared {
				continue
			}
			if j, ok := ds.FeatureSet.IndexOf(b); ok {
				indices = append(indices, j)
			}
		}
		sort.Ints(indices)

		buckets := ds.FeatureSet.Buckets()
		values := make([]float64, len(indices))
		for k, j := range indices {
			values[k] = inst.Values[buckets[j]]
		}
		sp.Indices[i] = indices
		sp.Values[i] = values
		sp.Counts[i] = len(indices)
	}
	return sp
}

// FeatureHistograms counts, for every bucket, how many positive and negative
// instances had it active.
func (ds *DataSet) FeatureHistograms() []FeatureHistogram {
	if ds.histograms != nil {
		return ds.histograms
	}

	counts := make(map[features.Bucket]*BucketCounts)
	for _, inst := range ds.Instances {
		for b, v := range inst.Values {
			if v == 0 {
				continue
			}
			c, ok := counts[b]
			if !ok {
				c = &BucketCounts{Bucket: b}
				counts[b] = c
			}
			if inst.Label {
				c.Positive++
			} else {
				c.Negative++
			}
		}
	}

	ds.histograms = make([]FeatureHistogram, 0, len(ds.FeatureSet.Features()))
	for _, f := range ds.FeatureSet.Features() {
		h := FeatureHistogram{Feature: f.ID(), Name: f.Name(), Buckets: make([]BucketCounts, 0, len(f.Buckets()))}
		for _, b := range f.Buckets() {
			if c, ok := counts[b]; ok {
				h.Buckets = append(h.Buckets, *c)
			} else {
				h.Buckets = append(h.Buckets, BucketCounts{Bucket: b})
			}
		}
		ds.histograms = append(ds.histograms, h)
	}
	return ds.histograms
}

// Equal compares names, feature sets and instances in order.
func (ds *DataSet) Equal(other *DataSet) bool {
	if ds == other {
		return true
	}
	if ds == nil || other == nil || ds.Name != other.Name || len(ds.Instances) != len(other.Instances) {
		return false
	}
	if !ds.FeatureSet.Equal(other.FeatureSet) {
		return false
	}
	for i, inst := range ds.Instances {
		if !inst.Equal(other.Instances[i]) {
			return false
		}
	}
	return true
}

// Fingerprint hashes the name and every instance in order.
func (ds *DataSet) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(ds.Name)
	for _, inst := range ds.Instances {
		inst.writeTo(d)
	}
	return d.Sum64()
}
