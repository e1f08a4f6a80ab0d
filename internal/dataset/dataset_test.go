package dataset

import (
	"testing"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	me    = mailbox.Address{Name: "Me", Email: "me@example.com"}
	alice = mailbox.Address{Name: "Alice", Email: "alice@example.com"}
	bob   = mailbox.Address{Name: "Bob", Email: "bob@example.com"}
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
}

// newTestUser builds a small mailbox: alice writes on days 1, 5 and 9 and gets a reply
// each time; bob writes on days 2, 6 and 10 with an attachment and is ignored.
func newTestUser(t *testing.T) *User {
	t.Helper()
	mb := mailbox.New(nil)
	mb.Directory().MarkMe(mb.Directory().Resolve(me.Name, me.Email))

	for _, d := range []int{1, 5, 9} {
		key := "alice-" + time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC).Format("0102")
		mb.AddMessage(mailbox.NewMessage{ConversationKey: key, FolderName: "Inbox", Subject: "Lunch?", From: alice, To: []mailbox.Address{me}, DateSent: day(d)})
		mb.AddMessage(mailbox.NewMessage{ConversationKey: key, FolderName: "Sent Items", Subject: "RE: Lunch?", From: me, To: []mailbox.Address{alice}, DateSent: day(d).Add(time.Hour)})
	}
	for _, d := range []int{2, 6, 10} {
		key := "bob-" + time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC).Format("0102")
		mb.AddMessage(mailbox.NewMessage{
			ConversationKey: key, FolderName: "Inbox", Subject: "Newsletter", From: bob,
			To: []mailbox.Address{alice}, Cc: []mailbox.Address{me}, DateSent: day(d),
			Attachments: []mailbox.Attachment{{Filename: "issue.pdf"}},
		})
	}

	u := NewUser("me", mb, features.DefaultOptions)
	u.PartitionByDate(day(4), day(8))
	return u
}

func TestEmptyDataSet(t *testing.T) {
	fs := features.NewFeatureSet("empty")
	ds := New("Train", fs, nil)

	assert.Equal(t, 0, ds.Count())
	assert.Empty(t, ds.PositiveInstances())
	assert.Empty(t, ds.NegativeInstances())
	assert.Empty(t, ds.Labels())
	assert.Empty(t, ds.DenseValues())
	assert.Empty(t, ds.PersonalSparseIndices())
	assert.Empty(t, ds.SharedSparseCounts())
	assert.Empty(t, ds.FeatureHistograms())
	assert.Equal(t, 0.0, ds.PositiveRate())
}

func TestInstanceEqualTolerance(t *testing.T) {
	fs := features.NewFeatureSet("x")
	b := features.Bucket{Feature: features.BodyLength, Index: 2, Name: "<=16"}
	other := features.Bucket{Feature: features.BodyLength, Index: 3, Name: "<=32"}

	a := &Instance{FeatureSet: fs, Values: map[features.Bucket]float64{b: 0.5}}
	same := &Instance{FeatureSet: fs, Values: map[features.Bucket]float64{b: 0.5}}
	near := &Instance{FeatureSet: fs, Values: map[features.Bucket]float64{b: 0.5 + 1e-10}}
	labeled := &Instance{FeatureSet: fs, Values: map[features.Bucket]float64{b: 0.5}, Label: true}
	otherKey := &Instance{FeatureSet: fs, Values: map[features.Bucket]float64{other: 0.5}}
	otherSet := &Instance{FeatureSet: features.NewFeatureSet("y"), Values: map[features.Bucket]float64{b: 0.5}}

	assert.True(t, a.Equal(same))
	assert.Equal(t, a.Fingerprint(), same.Fingerprint())
	assert.False(t, a.Equal(near), "1e-10 exceeds the tolerance")
	assert.False(t, a.Equal(labeled))
	assert.False(t, a.Equal(otherKey))
	assert.False(t, a.Equal(otherSet))
	assert.False(t, a.Equal(nil))
	assert.NotEqual(t, a.Fingerprint(), labeled.Fingerprint())
}

func TestInstanceEqualTreatsAbsentBucketsAsZero(t *testing.T) {
	fs := features.NewFeatureSet("x")
	b := features.Bucket{Feature: features.BodyLength, Index: 2, Name: "<=16"}
	zero := features.Bucket{Feature: features.HasAttachments, Index: 0, Name: "HasAttachments"}

	tests := []struct {
		name  string
		a     map[features.Bucket]float64
		b     map[features.Bucket]float64
		equal bool
	}{
		{name: "explicit zero on the left", a: map[features.Bucket]float64{b: 1, zero: 0}, b: map[features.Bucket]float64{b: 1}, equal: true},
		{name: "explicit zero on the right", a: map[features.Bucket]float64{b: 1}, b: map[features.Bucket]float64{b: 1, zero: 0}, equal: true},
		{name: "empty against all zeros", a: map[features.Bucket]float64{}, b: map[features.Bucket]float64{b: 0, zero: 0}, equal: true},
		{name: "non-zero extra bucket", a: map[features.Bucket]float64{b: 1}, b: map[features.Bucket]float64{b: 1, zero: 1}, equal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := &Instance{FeatureSet: fs, Values: tt.a}
			right := &Instance{FeatureSet: fs, Values: tt.b}
			assert.Equal(t, tt.equal, left.Equal(right))
			assert.Equal(t, tt.equal, right.Equal(left))
			if tt.equal {
				assert.Equal(t, left.Fingerprint(), right.Fingerprint())
			}
		})
	}
}

func TestUserFeatureCaches(t *testing.T) {
	u := newTestUser(t)

	f, err := u.Feature(features.Sender)
	require.NoError(t, err)
	again, err := u.Feature(features.Sender)
	require.NoError(t, err)
	assert.Same(t, f, again)
	assert.True(t, f.(features.Configurable).Configured())

	_, err = u.Feature(features.ID(404))
	assert.ErrorIs(t, err, features.ErrUnknownFeature)

	id := u.TrainMessages[0]
	first := u.Compute(f, id)
	assert.Len(t, u.FeatureBucketCache, 1)
	assert.Equal(t, first, u.Compute(f, id))
	assert.Len(t, u.FeatureBucketCache, 1)
	assert.Contains(t, u.FeatureBucketCache, CacheKey{Message: id, Feature: features.Sender})

	u.Rethread()
	assert.Empty(t, u.FeatureBucketCache)
	assert.Len(t, u.FeatureCache, 1)
}

func TestPartitionByDate(t *testing.T) {
	u := newTestUser(t)
	mb := u.Mailbox

	senders := func(ids []mailbox.MessageID) []time.Time {
		dates := make([]time.Time, len(ids))
		for i, id := range ids {
			dates[i] = mb.Message(id).DateSent
		}
		return dates
	}

	assert.Equal(t, []time.Time{day(1), day(2)}, senders(u.TrainMessages))
	assert.Equal(t, []time.Time{day(5), day(6)}, senders(u.ValidationMessages))
	assert.Equal(t, []time.Time{day(9), day(10)}, senders(u.TestMessages))

	for _, id := range append(append(u.TrainMessages, u.ValidationMessages...), u.TestMessages...) {
		assert.False(t, mb.IsFromMe(id), "only received messages are partitioned")
	}
}

func TestSplitByDateBoundaries(t *testing.T) {
	mb := mailbox.New(nil)
	onTrainEnd := mb.AddMessage(mailbox.NewMessage{ConversationKey: "a", From: alice, DateSent: day(4)})
	before := mb.AddMessage(mailbox.NewMessage{ConversationKey: "b", From: alice, DateSent: day(3)})
	onValidationEnd := mb.AddMessage(mailbox.NewMessage{ConversationKey: "c", From: alice, DateSent: day(8)})

	train, validation, test := SplitByDate(mb, []mailbox.MessageID{onTrainEnd, before, onValidationEnd, 99}, day(4), day(8))
	assert.Equal(t, []mailbox.MessageID{before}, train)
	assert.Equal(t, []mailbox.MessageID{onTrainEnd}, validation)
	assert.Equal(t, []mailbox.MessageID{onValidationEnd}, test)
}

func TestBuildInputs(t *testing.T) {
	u := newTestUser(t)
	fs, err := BuildFeatureSet(u, features.WithSender)
	require.NoError(t, err)

	in := BuildInputs(u, fs, true)
	require.Equal(t, 2, in.Train.Count())
	require.Equal(t, 2, in.Validation.Count())
	require.Equal(t, 2, in.Test.Count())
	assert.Same(t, fs, in.Train.FeatureSet)

	assert.Equal(t, []bool{true, false}, in.Train.Labels())
	assert.Len(t, in.Train.PositiveInstances(), 1)
	assert.Len(t, in.Train.NegativeInstances(), 1)
	assert.Equal(t, 0.5, in.Train.PositiveRate())

	tv := in.TrainAndValidation()
	assert.Equal(t, TrainAndValidationName, tv.Name)
	assert.Equal(t, 4, tv.Count())
	assert.Same(t, tv, in.TrainAndValidation())

	again := BuildInputs(u, fs, true)
	assert.True(t, in.Equal(again))
	assert.Equal(t, in.Test.Fingerprint(), again.Test.Fingerprint())
	assert.NotEqual(t, in.Train.Fingerprint(), in.Test.Fingerprint())
	assert.False(t, in.Train.Equal(in.Validation))
}

func TestFromMessageSharedOnly(t *testing.T) {
	u := newTestUser(t)
	fs, err := BuildFeatureSet(u, features.WithSender)
	require.NoError(t, err)

	id := u.TrainMessages[0]
	full := FromMessage(id, u, fs, true)
	sharedOnly := FromMessage(id, u, fs, false)

	hasSender := func(inst *Instance) bool {
		for b := range inst.Values {
			if b.Feature == features.Sender {
				return true
			}
		}
		return false
	}
	assert.True(t, hasSender(full))
	assert.False(t, hasSender(sharedOnly))
	assert.True(t, full.Label)
	assert.True(t, sharedOnly.Label)
}

func TestSparseAndDenseViews(t *testing.T) {
	u := newTestUser(t)
	fs, err := BuildFeatureSet(u, features.WithSender)
	require.NoError(t, err)
	ds := BuildInputs(u, fs, true).Train

	dense := ds.DenseValues()
	require.Len(t, dense, 2)
	for _, row := range dense {
		assert.Len(t, row, fs.Len())
	}

	personal := ds.PersonalSparse()
	shared := ds.SharedSparse()
	buckets := fs.Buckets()
	for i, inst := range ds.Instances {
		assert.Equal(t, 1, personal.Counts[i], "exactly one sender bucket")
		assert.Len(t, personal.Indices[i], personal.Counts[i])
		for _, j := range personal.Indices[i] {
			assert.Equal(t, features.Sender, buckets[j].Feature)
		}

		nonZero := 0
		for _, v := range inst.Values {
			if v != 0 {
				nonZero++
			}
		}
		assert.Equal(t, nonZero, personal.Counts[i]+shared.Counts[i])

		for k, j := range shared.Indices[i] {
			assert.NotEqual(t, features.Sender, buckets[j].Feature)
			assert.Equal(t, dense[i][j], shared.Values[i][k])
			if k > 0 {
				assert.Less(t, shared.Indices[i][k-1], j)
			}
		}
	}

	assert.Equal(t, ds.PersonalSparseIndices(), personal.Indices)
	assert.Equal(t, ds.SharedSparseValues(), shared.Values)
	assert.Equal(t, ds.PersonalSparseCounts(), personal.Counts)
	assert.Equal(t, ds.SharedSparseIndices(), shared.Indices)
	assert.Equal(t, ds.PersonalSparseValues(), personal.Values)
	assert.Equal(t, ds.SharedSparseCounts(), shared.Counts)
}

func TestFeatureHistograms(t *testing.T) {
	u := newTestUser(t)
	fs, err := BuildFeatureSet(u, features.Initial)
	require.NoError(t, err)
	in := BuildInputs(u, fs, true)
	hist := in.TrainAndValidation().FeatureHistograms()

	require.Len(t, hist, 2)
	assert.Equal(t, features.ToCcPosition, hist[0].Feature)

	onTo, onCc := hist[0].Buckets[0], hist[0].Buckets[1]
	assert.Equal(t, BucketCounts{Bucket: onTo.Bucket, Positive: 2, Negative: 0}, onTo)
	assert.Equal(t, BucketCounts{Bucket: onCc.Bucket, Positive: 0, Negative: 2}, onCc)
	assert.Equal(t, 0, hist[0].Buckets[2].Positive+hist[0].Buckets[2].Negative)

	attach := hist[1].Buckets[0]
	assert.Equal(t, 0, attach.Positive)
	assert.Equal(t, 2, attach.Negative)
}
