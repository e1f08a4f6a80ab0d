package threading

import (
	"strings"

	"github.com/dotnet/mbmlbook-sub000/internal/contacts"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

// Match says which evidence linked a message to its parent.
type Match int

const (
	MatchNone Match = iota
	MatchHeader
	MatchTo
	MatchCc
)

func (m Match) String() string {
	switch m {
	case MatchHeader:
		return "header"
	case MatchTo:
		return "to"
	case MatchCc:
		return "cc"
	default:
		return "none"
	}
}

type node struct {
	depth   int
	parent  mailbox.MessageID
	match   Match
	orphan  bool
	replies []mailbox.MessageID
}

// Result is the reply tree of one conversation. It is immutable once returned by Thread.
type Result struct {
	conversation mailbox.ConversationID
	order        []mailbox.MessageID
	nodes        map[mailbox.MessageID]*node
}

// Thread computes depths and reply links for a conversation.
//
// The first message is the root with depth 0. Every later message is attached to the most
// recent earlier message that it answers: first by In-Reply-To header, then by the earlier
// sender appearing on its To line, then on its Cc line. A message with no such parent gets
// depth 0 and is reported as an orphan root.
//
// Thread does not modify the mailbox; calling it again on an unchanged conversation
// returns an equal result.
func Thread(mb *mailbox.Mailbox, conv *mailbox.Conversation) *Result {
	res := &Result{nodes: make(map[mailbox.MessageID]*node)}
	if conv == nil {
		res.conversation = mailbox.NoConversation
		return res
	}

	res.conversation = conv.ID
	res.order = append([]mailbox.MessageID(nil), conv.Messages...)

	senders := make([]contacts.PersonID, len(res.order))
	for i, id := range res.order {
		senders[i] = mb.SenderPerson(id)
	}

	for i, id := range res.order {
		n := &node{parent: -1}
		res.nodes[id] = n
		if i == 0 {
			continue
		}

		parent, match := findParent(mb, res.order, senders, i)
		if parent < 0 {
			n.orphan = true
			continue
		}

		p := res.nodes[res.order[parent]]
		n.depth = p.depth + 1
		n.parent = res.order[parent]
		n.match = match
		p.replies = append(p.replies, id)
	}

	return res
}

func findParent(mb *mailbox.Mailbox, order []mailbox.MessageID, senders []contacts.PersonID, i int) (int, Match) {
	msg := mb.Message(order[i])

	if ref := normalizeMessageID(msg.InReplyToID); ref != "" {
		for j := i - 1; j >= 0; j-- {
			if normalizeMessageID(mb.Message(order[j]).InternetMessageID) == ref {
				return j, MatchHeader
			}
		}
	}

	if j := scanBack(senders, mb.RecipientPersons(order[i], false), i); j >= 0 {
		return j, MatchTo
	}
	if j := scanBack(senders, mb.RecipientPersons(order[i], true), i); j >= 0 {
		return j, MatchCc
	}
	return -1, MatchNone
}

// scanBack returns the latest index before i whose sender is among recipients.
func scanBack(senders []contacts.PersonID, recipients []contacts.PersonID, i int) int {
	if len(recipients) == 0 {
		return -1
	}
	for j := i - 1; j >= 0; j-- {
		if senders[j] == contacts.NoPerson {
			continue
		}
		for _, r := range recipients {
			if r == senders[j] {
				return j
			}
		}
	}
	return -1
}

func normalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// Conversation returns the ID of the conversation this result was computed for.
func (r *Result) Conversation() mailbox.ConversationID {
	return r.conversation
}

// MessageCount returns how many messages were threaded.
func (r *Result) MessageCount() int {
	return len(r.order)
}

// Messages returns the threaded messages in chronological order.
func (r *Result) Messages() []mailbox.MessageID {
	return append([]mailbox.MessageID(nil), r.order...)
}

// Depth returns the reply depth of a message. ok is false for messages outside this result.
func (r *Result) Depth(id mailbox.MessageID) (int, bool) {
	n, ok := r.nodes[id]
	if !ok {
		return 0, false
	}
	return n.depth, true
}

// Parent returns the message that id replies to.
func (r *Result) Parent(id mailbox.MessageID) (mailbox.MessageID, bool) {
	n, ok := r.nodes[id]
	if !ok || n.parent < 0 {
		return 0, false
	}
	return n.parent, true
}

// MatchOf returns how a message was linked to its parent.
func (r *Result) MatchOf(id mailbox.MessageID) Match {
	n, ok := r.nodes[id]
	if !ok {
		return MatchNone
	}
	return n.match
}

// Replies returns the messages that reply to id, in chronological order.
func (r *Result) Replies(id mailbox.MessageID) []mailbox.MessageID {
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	return append([]mailbox.MessageID(nil), n.replies...)
}

// Roots returns every message without a parent: the first message and any orphans.
func (r *Result) Roots() []mailbox.MessageID {
	var roots []mailbox.MessageID
	for _, id := range r.order {
		if r.nodes[id].parent < 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Orphans returns the later messages for which no parent could be found.
func (r *Result) Orphans() []mailbox.MessageID {
	var orphans []mailbox.MessageID
	for _, id := range r.order {
		if r.nodes[id].orphan {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

// Stale reports whether the conversation changed since this result was computed.
func (r *Result) Stale(conv *mailbox.Conversation) bool {
	if conv == nil || conv.ID != r.conversation || len(conv.Messages) != len(r.order) {
		return true
	}
	for i, id := range conv.Messages {
		if r.order[i] != id {
			return true
		}
	}
	return false
}
