package features

import (
	"fmt"
)

const (
	Initial           = "Initial"
	WithSubjectPrefix = "WithSubjectPrefix"
	WithSender        = "WithSender"
	WithRecipient     = "WithRecipient"
	WithLengths       = "WithLengths"
	WithConversation  = "WithConversation"
	Combined          = "Combined"
)

// Each named set extends the previous one. FolderRole is left out: a message's folder
// records what the owner did with it.
var variants = []struct {
	name string
	ids  []ID
}{
	{Initial, []ID{ToCcPosition, HasAttachments}},
	{WithSubjectPrefix, []ID{ToCcPosition, HasAttachments, SubjectPrefix}},
	{WithSender, []ID{ToCcPosition, HasAttachments, SubjectPrefix, Sender}},
	{WithRecipient, []ID{ToCcPosition, HasAttachments, SubjectPrefix, Sender, RecipientCount}},
	{WithLengths, []ID{ToCcPosition, HasAttachments, SubjectPrefix, Sender, RecipientCount,
		BodyLength, SubjectLength}},
	{WithConversation, []ID{ToCcPosition, HasAttachments, SubjectPrefix, Sender, RecipientCount,
		BodyLength, SubjectLength, ConversationDepth}},
	{Combined, []ID{ToCcPosition, HasAttachments, SubjectPrefix, Sender, RecipientCount,
		BodyLength, SubjectLength, ConversationDepth, FromManager}},
}

// Variants lists the named feature sets, smallest first.
func Variants() []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.name
	}
	return names
}

// VariantIDs returns the feature IDs of a named feature set.
func VariantIDs(name string) ([]ID, error) {
	for _, v := range variants {
		if v.name == name {
			return append([]ID(nil), v.ids...), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Variant builds a named feature set, asking resolve for each member feature.
// Callers that configure features per user pass a resolver backed by their cache.
func Variant(name string, resolve func(ID) (Feature, error)) (*FeatureSet, error) {
	ids, err := VariantIDs(name)
	if err != nil {
		return nil, err
	}

	fs := make([]Feature, 0, len(ids))
	for _, id := range ids {
		f, err := resolve(id)
		if err != nil {
			return nil, fmt.Errorf("failed to build feature %s for %s: %w", id, name, err)
		}
		if c, ok := f.(Configurable); ok && !c.Configured() {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotConfigured, id, name)
		}
		fs = append(fs, f)
	}
	return NewFeatureSet(name, fs...), nil
}
