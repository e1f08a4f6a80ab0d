package features

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrUnknownVariant = errors.New("unknown feature set")
	ErrNotConfigured  = errors.New("feature not configured")
)

// Options tune the construction of built-in features.
type Options struct {
	// SenderTopN is how many of the most frequent senders get their own bucket.
	SenderTopN int
}

// DefaultOptions are used when a caller has no preference.
var DefaultOptions = Options{SenderTopN: 10}

// Constructor builds a fresh, unconfigured feature.
type Constructor func(opts Options) Feature

var registry = make(map[ID]Constructor)

// Register makes a feature constructor available under id.
// It panics if id is registered twice or the constructor is nil.
func Register(id ID, c Constructor) {
	if c == nil {
		panic("features: Register constructor is nil")
	}
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("features: Register called twice for %s", id))
	}
	registry[id] = c
}

// New builds the feature registered under id.
func New(id ID, opts Options) (Feature, error) {
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, id)
	}
	return c(opts), nil
}

// Registered lists every registered feature ID in ascending order.
func Registered() []ID {
	ids := make([]ID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func init() {
	Register(ToCcPosition, func(Options) Feature { return newToCcPosition() })
	Register(HasAttachments, func(Options) Feature { return newHasAttachments() })
	Register(BodyLength, func(Options) Feature { return newBodyLength() })
	Register(SubjectLength, func(Options) Feature { return newSubjectLength() })
	Register(SubjectPrefix, func(Options) Feature { return newSubjectPrefix() })
	Register(RecipientCount, func(Options) Feature { return newRecipientCount() })
	Register(ConversationDepth, func(Options) Feature { return newConversationDepth() })
	Register(FolderRole, func(Options) Feature { return newFolderRole() })
	Register(FromManager, func(Options) Feature { return newFromManager() })
	Register(Sender, func(opts Options) Feature { return newSender(opts.SenderTopN) })
}
