package dataset

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

// Epsilon is the largest difference at which two feature values still compare equal.
const Epsilon = math.SmallestNonzeroFloat64

// Instance is one labeled example: a sparse map from bucket to value.
// Buckets absent from Values are zero.
type Instance struct {
	Message    mailbox.MessageID
	FeatureSet *features.FeatureSet
	Values     map[features.Bucket]float64
	// Label is whether the owner replied, frozen when the instance was built.
	Label bool
}

// FromMessage computes every feature of fs for one message of u.
// With includeSharedFeatures false only the shared features are computed and the
// personal ones are skipped, which is what community models train on.
func FromMessage(id mailbox.MessageID, u *User, fs *features.FeatureSet, includeSharedFeatures bool) *Instance {
	inst := &Instance{
		Message:    id,
		FeatureSet: fs,
		Values:     make(map[features.Bucket]float64),
		Label:      u.Threads.IsRepliedTo(id),
	}

	for _, f := range fs.Features() {
		if !includeSharedFeatures && !f.Shared() {
			continue
		}
		for _, v := range u.Compute(f, id) {
			inst.Values[v.Bucket] = v.Value
		}
	}
	return inst
}

// Value returns the value of a bucket, zero when absent.
func (i *Instance) Value(b features.Bucket) float64 {
	return i.Values[b]
}

// Equal compares feature sets, labels and values. Values may differ by at most Epsilon.
func (i *Instance) Equal(other *Instance) bool {
	if i == other {
		return true
	}
	if i == nil || other == nil || i.Label != other.Label {
		return false
	}
	if !i.FeatureSet.Equal(other.FeatureSet) {
		return false
	}
	for b, v := range i.Values {
		if math.Abs(v-other.Values[b]) > Epsilon {
			return false
		}
	}
	for b, w := range other.Values {
		if _, ok := i.Values[b]; !ok && math.Abs(w) > Epsilon {
			return false
		}
	}
	return true
}

// sortedBuckets orders the instance's buckets by feature, then index.
func (i *Instance) sortedBuckets() []features.Bucket {
	buckets := make([]features.Bucket, 0, len(i.Values))
	for b := range i.Values {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(a, c int) bool {
		if buckets[a].Feature != buckets[c].Feature {
			return buckets[a].Feature < buckets[c].Feature
		}
		return buckets[a].Index < buckets[c].Index
	})
	return buckets
}

// Fingerprint hashes the instance contents. Equal instances whose values match
// exactly share a fingerprint. Zero values hash like absent buckets.
func (i *Instance) Fingerprint() uint64 {
	d := xxhash.New()
	i.writeTo(d)
	return d.Sum64()
}

func (i *Instance) writeTo(d *xxhash.Digest) {
	var buf [8]byte
	if i.FeatureSet != nil {
		_, _ = d.WriteString(i.FeatureSet.Name())
	}
	for _, b := range i.sortedBuckets() {
		if i.Values[b] == 0 {
			continue
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(b.Feature))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(b.Index))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(i.Values[b]))
		_, _ = d.Write(buf[:])
	}
	if i.Label {
		_, _ = d.Write([]byte{1})
	} else {
		_, _ = d.Write([]byte{0})
	}
}
