package features

import (
	"github.com/dotnet/mbmlbook-sub000/internal/contacts"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

var (
	bodyLengthBins        = []float64{0, 8, 16, 32, 64, 128, 256, 512, 1024}
	subjectLengthBins     = []float64{0, 1, 2, 4, 8, 16}
	recipientCountBins    = []float64{1, 2, 3, 5, 10, 20}
	conversationDepthBins = []float64{0, 1, 2, 3, 5, 8}
)

// toCcPosition says whether the owner was addressed directly, copied, or neither.
type toCcPosition struct{ base }

func newToCcPosition() *toCcPosition {
	return &toCcPosition{base{id: ToCcPosition, shared: true,
		buckets: makeBuckets(ToCcPosition, "OnToLine", "OnCcLine", "NotOnToOrCcLine")}}
}

func (f *toCcPosition) Compute(ctx *Context, id mailbox.MessageID) []Value {
	switch {
	case ctx.Mailbox.IsToMe(id):
		return f.oneHot(0)
	case ctx.Mailbox.IsCcMe(id):
		return f.oneHot(1)
	default:
		return f.oneHot(2)
	}
}

type hasAttachments struct{ base }

func newHasAttachments() *hasAttachments {
	return &hasAttachments{base{id: HasAttachments, shared: true,
		buckets: makeBuckets(HasAttachments, "HasAttachments")}}
}

func (f *hasAttachments) Compute(ctx *Context, id mailbox.MessageID) []Value {
	msg := ctx.Mailbox.Message(id)
	return f.binary(msg != nil && msg.HasAttachments())
}

// binned maps one numeric property of a message to a fixed set of bins.
type binned struct {
	base
	boundaries []float64
	measure    func(ctx *Context, id mailbox.MessageID) float64
}

func newBinned(id ID, boundaries []float64, measure func(*Context, mailbox.MessageID) float64) *binned {
	return &binned{
		base:       base{id: id, shared: true, buckets: makeBuckets(id, binNames(boundaries)...)},
		boundaries: boundaries,
		measure:    measure,
	}
}

func (f *binned) Compute(ctx *Context, id mailbox.MessageID) []Value {
	return f.oneHot(BinIndex(f.measure(ctx, id), f.boundaries))
}

func newBodyLength() *binned {
	return newBinned(BodyLength, bodyLengthBins, func(ctx *Context, id mailbox.MessageID) float64 {
		if msg := ctx.Mailbox.Message(id); msg != nil {
			return float64(msg.BodyWordCount())
		}
		return 0
	})
}

func newSubjectLength() *binned {
	return newBinned(SubjectLength, subjectLengthBins, func(ctx *Context, id mailbox.MessageID) float64 {
		if msg := ctx.Mailbox.Message(id); msg != nil {
			return float64(msg.SubjectWordCount())
		}
		return 0
	})
}

func newRecipientCount() *binned {
	return newBinned(RecipientCount, recipientCountBins, func(ctx *Context, id mailbox.MessageID) float64 {
		if msg := ctx.Mailbox.Message(id); msg != nil {
			return float64(msg.RecipientCount())
		}
		return 0
	})
}

// Messages outside the thread index count as roots.
func newConversationDepth() *binned {
	return newBinned(ConversationDepth, conversationDepthBins, func(ctx *Context, id mailbox.MessageID) float64 {
		if ctx.Threads == nil {
			return 0
		}
		depth, _ := ctx.Threads.Depth(id)
		return float64(depth)
	})
}

type subjectPrefix struct{ base }

func newSubjectPrefix() *subjectPrefix {
	return &subjectPrefix{base{id: SubjectPrefix, shared: true,
		buckets: makeBuckets(SubjectPrefix,
			mailbox.PrefixNone.String(), mailbox.PrefixReply.String(), mailbox.PrefixForward.String())}}
}

func (f *subjectPrefix) Compute(ctx *Context, id mailbox.MessageID) []Value {
	msg := ctx.Mailbox.Message(id)
	if msg == nil {
		return f.oneHot(int(mailbox.PrefixNone))
	}
	return f.oneHot(int(msg.SubjectPrefix()))
}

var folderRoles = []mailbox.FolderRole{
	mailbox.RoleOther, mailbox.RoleInbox, mailbox.RoleSentItems, mailbox.RoleJunk,
	mailbox.RoleDrafts, mailbox.RoleDeleted, mailbox.RoleUser,
}

type folderRole struct{ base }

func newFolderRole() *folderRole {
	names := make([]string, len(folderRoles))
	for i, r := range folderRoles {
		names[i] = r.String()
	}
	return &folderRole{base{id: FolderRole, shared: true, buckets: makeBuckets(FolderRole, names...)}}
}

func (f *folderRole) Compute(ctx *Context, id mailbox.MessageID) []Value {
	role := mailbox.RoleOther
	if folder := ctx.Mailbox.FolderOf(id); folder != nil {
		role = folder.Role()
	}
	for i, r := range folderRoles {
		if r == role {
			return f.oneHot(i)
		}
	}
	return f.oneHot(0)
}

// fromManager fires when the sender manages the mailbox owner.
type fromManager struct{ base }

func newFromManager() *fromManager {
	return &fromManager{base{id: FromManager, buckets: makeBuckets(FromManager, "FromManager")}}
}

func (f *fromManager) Compute(ctx *Context, id mailbox.MessageID) []Value {
	mb := ctx.Mailbox
	manager := mb.Directory().ManagerOf(mb.Owner())
	return f.binary(manager != contacts.NoPerson && mb.SenderPerson(id) == manager)
}
