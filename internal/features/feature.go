package features

import (
	"fmt"
	"strconv"

	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/threading"
)

// ID tags a feature type. It is stable across runs and used as a cache key.
type ID int

const (
	ToCcPosition ID = iota + 1
	HasAttachments
	BodyLength
	SubjectLength
	SubjectPrefix
	RecipientCount
	ConversationDepth
	FolderRole
	FromManager
	Sender
)

var idNames = map[ID]string{
	ToCcPosition:      "ToCcPosition",
	HasAttachments:    "HasAttachments",
	BodyLength:        "BodyLength",
	SubjectLength:     "SubjectLength",
	SubjectPrefix:     "SubjectPrefix",
	RecipientCount:    "RecipientCount",
	ConversationDepth: "ConversationDepth",
	FolderRole:        "FolderRole",
	FromManager:       "FromManager",
	Sender:            "Sender",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "Feature(" + strconv.Itoa(int(id)) + ")"
}

// ParseID maps a feature name back to its ID.
func ParseID(name string) (ID, error) {
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// Bucket is one discrete output slot of a feature. Buckets are comparable and used as map keys.
type Bucket struct {
	Feature ID
	Index   int
	Name    string
}

func (b Bucket) String() string {
	return b.Feature.String() + "[" + b.Name + "]"
}

// Value is the output of a feature for one bucket.
type Value struct {
	Bucket Bucket
	Value  float64
}

// Context is everything a feature may read while computing.
type Context struct {
	Mailbox *mailbox.Mailbox
	Threads *threading.Index
}

// Feature maps a message to values over a fixed, ordered list of buckets.
type Feature interface {
	ID() ID
	Name() string
	Version() int
	// Shared features are trained across a community of users.
	Shared() bool
	Buckets() []Bucket
	Compute(ctx *Context, id mailbox.MessageID) []Value
}

// Configurable features derive their buckets from a user's history.
// Configure must run before Buckets or Compute return anything useful.
type Configurable interface {
	Feature
	Configure(ctx *Context, history []mailbox.MessageID) error
	Configured() bool
}

// BinIndex returns the first i with value <= boundaries[i], or the last bin.
func BinIndex(value float64, boundaries []float64) int {
	if len(boundaries) == 0 {
		return 0
	}
	for i, b := range boundaries {
		if value <= b {
			return i
		}
	}
	return len(boundaries) - 1
}

type base struct {
	id      ID
	shared  bool
	buckets []Bucket
}

func (b *base) ID() ID            { return b.id }
func (b *base) Name() string      { return b.id.String() }
func (b *base) Version() int      { return 1 }
func (b *base) Shared() bool      { return b.shared }
func (b *base) Buckets() []Bucket { return b.buckets }

// oneHot activates a single bucket.
func (b *base) oneHot(index int) []Value {
	if index < 0 || index >= len(b.buckets) {
		return nil
	}
	return []Value{{Bucket: b.buckets[index], Value: 1}}
}

// binary emits the feature's only bucket as 0 or 1.
func (b *base) binary(on bool) []Value {
	v := 0.0
	if on {
		v = 1
	}
	return []Value{{Bucket: b.buckets[0], Value: v}}
}

func makeBuckets(id ID, names ...string) []Bucket {
	buckets := make([]Bucket, len(names))
	for i, n := range names {
		buckets[i] = Bucket{Feature: id, Index: i, Name: n}
	}
	return buckets
}

// binNames labels bins as "<=b" with the last bin open ended.
func binNames(boundaries []float64) []string {
	names := make([]string, len(boundaries))
	for i, b := range boundaries {
		if i == len(boundaries)-1 && i > 0 {
			names[i] = ">" + strconv.FormatFloat(boundaries[i-1], 'f', -1, 64)
			continue
		}
		names[i] = "<=" + strconv.FormatFloat(b, 'f', -1, 64)
	}
	return names
}
