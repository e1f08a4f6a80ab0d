package dataset

import (
	"fmt"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/threading"
)

// CacheKey identifies one memoized feature computation.
type CacheKey struct {
	Message mailbox.MessageID
	Feature features.ID
}

// User bundles a mailbox with its partitions and the per-user feature caches.
// The caches belong to this user alone; a User is not safe for concurrent use.
type User struct {
	Name    string
	Mailbox *mailbox.Mailbox
	Threads *threading.Index
	Options features.Options

	TrainMessages      []mailbox.MessageID
	ValidationMessages []mailbox.MessageID
	TestMessages       []mailbox.MessageID

	// FeatureCache holds configured features by type.
	FeatureCache map[features.ID]features.Feature
	// FeatureBucketCache holds computed values by message and feature type.
	FeatureBucketCache map[CacheKey][]features.Value
}

// NewUser threads the mailbox and returns a user with empty partitions.
func NewUser(name string, mb *mailbox.Mailbox, opts features.Options) *User {
	return &User{
		Name:               name,
		Mailbox:            mb,
		Threads:            threading.Build(mb),
		Options:            opts,
		FeatureCache:       make(map[features.ID]features.Feature),
		FeatureBucketCache: make(map[CacheKey][]features.Value),
	}
}

// Context exposes the user's mailbox and threads to features.
func (u *User) Context() *features.Context {
	return &features.Context{Mailbox: u.Mailbox, Threads: u.Threads}
}

// Rethread rebuilds the thread index after the mailbox changed and drops computed values.
// Configured features are kept.
func (u *User) Rethread() {
	u.Threads = threading.Build(u.Mailbox)
	u.FeatureBucketCache = make(map[CacheKey][]features.Value)
}

// PartitionByDate splits the user's received messages into the three partitions.
func (u *User) PartitionByDate(trainEnd, validationEnd time.Time) {
	u.TrainMessages, u.ValidationMessages, u.TestMessages =
		SplitByDate(u.Mailbox, ReceivedMessages(u.Mailbox), trainEnd, validationEnd)
}

// Feature returns the user's instance of a feature type. Configurable features are
// configured against the whole mailbox on first request.
func (u *User) Feature(id features.ID) (features.Feature, error) {
	if f, ok := u.FeatureCache[id]; ok {
		return f, nil
	}

	f, err := features.New(id, u.Options)
	if err != nil {
		return nil, err
	}
	if c, ok := f.(features.Configurable); ok {
		if err := c.Configure(u.Context(), u.Mailbox.MessageIDs()); err != nil {
			return nil, fmt.Errorf("failed to configure %s for %s: %w", id, u.Name, err)
		}
	}

	u.FeatureCache[id] = f
	return f, nil
}

// Compute returns the values of f for a message, computing them at most once.
func (u *User) Compute(f features.Feature, id mailbox.MessageID) []features.Value {
	key := CacheKey{Message: id, Feature: f.ID()}
	if values, ok := u.FeatureBucketCache[key]; ok {
		return values
	}
	values := f.Compute(u.Context(), id)
	u.FeatureBucketCache[key] = values
	return values
}

// BuildFeatureSet builds a named feature set from the user's configured features.
func BuildFeatureSet(u *User, variant string) (*features.FeatureSet, error) {
	return features.Variant(variant, u.Feature)
}
