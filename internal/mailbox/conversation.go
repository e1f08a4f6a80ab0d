package mailbox

// ConversationID identifies a conversation inside a Mailbox.
type ConversationID int

// NoConversation marks a message that is not part of any conversation.
const NoConversation ConversationID = -1

// Conversation is the chronologically ordered list of messages sharing a thread key.
type Conversation struct {
	ID       ConversationID
	Key      string
	Messages []MessageID
}

// insert places id so that Messages stays ordered by DateSent, earliest first.
// Messages sent at the same instant keep their insertion order.
func (c *Conversation) insert(mb *Mailbox, id MessageID) {
	sent := mb.messages[id].DateSent
	pos := len(c.Messages)
	for i, existing := range c.Messages {
		if sent.Before(mb.messages[existing].DateSent) {
			pos = i
			break
		}
	}

	c.Messages = append(c.Messages, 0)
	copy(c.Messages[pos+1:], c.Messages[pos:])
	c.Messages[pos] = id
}

func (c *Conversation) remove(id MessageID) bool {
	for i, existing := range c.Messages {
		if existing == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// Subject returns the subject of the earliest message with reply/forward prefixes stripped.
func (c *Conversation) Subject(mb *Mailbox) string {
	if len(c.Messages) == 0 {
		return ""
	}
	return StripSubjectPrefixes(mb.messages[c.Messages[0]].Subject)
}

// DominantFolder returns the folder holding most of the conversation's messages.
// Ties go to the folder seen first in chronological order.
func (c *Conversation) DominantFolder(mb *Mailbox) FolderID {
	counts := make(map[FolderID]int)
	best := NoFolder
	for _, id := range c.Messages {
		f := mb.messages[id].Folder
		counts[f]++
		if best == NoFolder || counts[f] > counts[best] {
			best = f
		}
	}
	return best
}

// ReplyProbability is the highest predicted reply probability of any message in the conversation.
func (c *Conversation) ReplyProbability(mb *Mailbox) float64 {
	var p float64
	for _, id := range c.Messages {
		if v := mb.messages[id].ReplyProbability; v > p {
			p = v
		}
	}
	return p
}
