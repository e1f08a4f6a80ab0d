package threading

import (
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

// Action is what the mailbox owner primarily did with a message.
type Action int

const (
	ActionNone Action = iota
	ActionReply
	ActionForward
	ActionDelete
	ActionMove
)

func (a Action) String() string {
	switch a {
	case ActionReply:
		return "Reply"
	case ActionForward:
		return "Forward"
	case ActionDelete:
		return "Delete"
	case ActionMove:
		return "Move"
	default:
		return "None"
	}
}

// Index holds the threading result of every conversation of a mailbox.
// It reflects the mailbox as of Build; after adding or removing messages
// call Rebuild for the affected conversation.
type Index struct {
	mb      *mailbox.Mailbox
	results map[mailbox.ConversationID]*Result
}

// Build threads every conversation in the mailbox.
func Build(mb *mailbox.Mailbox) *Index {
	ix := &Index{
		mb:      mb,
		results: make(map[mailbox.ConversationID]*Result, len(mb.Conversations())),
	}
	for _, conv := range mb.Conversations() {
		ix.results[conv.ID] = Thread(mb, conv)
	}
	return ix
}

// Rebuild re-threads one conversation and returns its fresh result.
func (ix *Index) Rebuild(id mailbox.ConversationID) *Result {
	res := Thread(ix.mb, ix.mb.Conversation(id))
	ix.results[id] = res
	return res
}

// Result returns the threading result of a conversation.
func (ix *Index) Result(id mailbox.ConversationID) *Result {
	return ix.results[id]
}

// Stale lists conversations whose result no longer matches the mailbox.
func (ix *Index) Stale() []mailbox.ConversationID {
	var stale []mailbox.ConversationID
	for _, conv := range ix.mb.Conversations() {
		res, ok := ix.results[conv.ID]
		if !ok || res.Stale(conv) {
			stale = append(stale, conv.ID)
		}
	}
	return stale
}

func (ix *Index) resultFor(id mailbox.MessageID) *Result {
	msg := ix.mb.Message(id)
	if msg == nil {
		return nil
	}
	return ix.results[msg.Conversation]
}

// Depth returns the conversation depth of a message.
func (ix *Index) Depth(id mailbox.MessageID) (int, bool) {
	res := ix.resultFor(id)
	if res == nil {
		return 0, false
	}
	return res.Depth(id)
}

// Parent returns the message that id replies to.
func (ix *Index) Parent(id mailbox.MessageID) (mailbox.MessageID, bool) {
	res := ix.resultFor(id)
	if res == nil {
		return 0, false
	}
	return res.Parent(id)
}

// Replies returns the messages replying to id.
func (ix *Index) Replies(id mailbox.MessageID) []mailbox.MessageID {
	res := ix.resultFor(id)
	if res == nil {
		return nil
	}
	return res.Replies(id)
}

// ReplyOf returns the first reply to id sent by the mailbox owner.
func (ix *Index) ReplyOf(id mailbox.MessageID) (mailbox.MessageID, bool) {
	for _, r := range ix.Replies(id) {
		if ix.mb.IsFromMe(r) {
			return r, true
		}
	}
	return 0, false
}

// IsRepliedTo reports whether the mailbox owner replied to the message.
// This is the ground-truth label for reply prediction.
func (ix *Index) IsRepliedTo(id mailbox.MessageID) bool {
	_, ok := ix.ReplyOf(id)
	return ok
}

// IsForwarded reports whether the owner later forwarded something in the same conversation.
func (ix *Index) IsForwarded(id mailbox.MessageID) bool {
	conv := ix.mb.ConversationOf(id)
	if conv == nil {
		return false
	}
	sent := ix.mb.Message(id).DateSent
	for _, other := range conv.Messages {
		m := ix.mb.Message(other)
		if other == id || m.DateSent.Before(sent) {
			continue
		}
		if ix.mb.IsFromMe(other) && m.SubjectPrefix() == mailbox.PrefixForward {
			return true
		}
	}
	return false
}

// PrimaryAction classifies what the owner did with a message.
func (ix *Index) PrimaryAction(id mailbox.MessageID) Action {
	if ix.mb.Message(id) == nil {
		return ActionNone
	}
	if ix.IsRepliedTo(id) {
		return ActionReply
	}
	if ix.IsForwarded(id) {
		return ActionForward
	}
	if f := ix.mb.FolderOf(id); f != nil {
		if f.IsDeleted() {
			return ActionDelete
		}
		if f.IsUserFolder() {
			return ActionMove
		}
	}
	return ActionNone
}
