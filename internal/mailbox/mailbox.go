package mailbox

import (
	"sort"
	"strings"

	"github.com/dotnet/mbmlbook-sub000/internal/contacts"
	"golang.org/x/text/cases"
)

// Mailbox is the arena owning every message, conversation and folder of one user.
// Relations between them are expressed as IDs into the arena.
// A Mailbox is not safe for concurrent use.
type Mailbox struct {
	directory     *contacts.Directory
	messages      []*Message
	conversations []*Conversation
	folders       []*Folder

	conversationsByKey map[string]ConversationID
	foldersByName      map[string]FolderID
	byIdentity         map[contacts.IdentityID][]MessageID
}

// New creates an empty mailbox resolving addresses against dir.
// A nil dir gets a fresh directory.
func New(dir *contacts.Directory) *Mailbox {
	if dir == nil {
		dir = contacts.NewDirectory()
	}
	return &Mailbox{
		directory:          dir,
		conversationsByKey: make(map[string]ConversationID),
		foldersByName:      make(map[string]FolderID),
		byIdentity:         make(map[contacts.IdentityID][]MessageID),
	}
}

// Directory returns the contact directory of this mailbox.
func (mb *Mailbox) Directory() *contacts.Directory {
	return mb.directory
}

// ConversationKeyForSubject derives a conversation key for messages that carry no thread identifier.
func ConversationKeyForSubject(subject string) string {
	return "subject:" + cases.Fold().String(StripSubjectPrefixes(subject))
}

// AddMessage resolves the message's addresses, files it into its folder and conversation,
// and returns its ID.
func (mb *Mailbox) AddMessage(nm NewMessage) MessageID {
	id := MessageID(len(mb.messages))

	msg := &Message{
		ID:                id,
		InternetMessageID: strings.TrimSpace(nm.InternetMessageID),
		InReplyToID:       strings.TrimSpace(nm.InReplyToID),
		Subject:           nm.Subject,
		Body:              nm.Body,
		From:              mb.directory.Resolve(nm.From.Name, nm.From.Email),
		To:                mb.resolveAll(nm.To),
		Cc:                mb.resolveAll(nm.Cc),
		DateSent:          nm.DateSent,
		DateReceived:      nm.DateReceived,
		IsRead:            nm.IsRead,
		IsFlagged:         nm.IsFlagged,
		Importance:        nm.Importance,
		Attachments:       append([]Attachment(nil), nm.Attachments...),
		Folder:            NoFolder,
		Conversation:      NoConversation,
	}
	mb.messages = append(mb.messages, msg)

	if nm.FolderName != "" {
		folder := mb.EnsureFolder(nm.FolderName)
		msg.Folder = folder.ID
		folder.Messages = append(folder.Messages, id)
	}

	key := nm.ConversationKey
	if key == "" {
		key = ConversationKeyForSubject(nm.Subject)
	}
	conv := mb.ensureConversation(key)
	msg.Conversation = conv.ID
	conv.insert(mb, id)

	mb.indexParticipants(msg)
	return id
}

// RemoveMessage detaches a message from its folder and conversation.
// The ID stays reserved so other references remain valid.
func (mb *Mailbox) RemoveMessage(id MessageID) bool {
	msg := mb.Message(id)
	if msg == nil || msg.Conversation == NoConversation {
		return false
	}

	mb.conversations[msg.Conversation].remove(id)
	if msg.Folder != NoFolder {
		f := mb.folders[msg.Folder]
		for i, existing := range f.Messages {
			if existing == id {
				f.Messages = append(f.Messages[:i], f.Messages[i+1:]...)
				break
			}
		}
	}
	for iid, ids := range mb.byIdentity {
		mb.byIdentity[iid] = removeMessageID(ids, id)
	}

	msg.Conversation = NoConversation
	msg.Folder = NoFolder
	return true
}

// Message returns the message with the given ID or nil.
func (mb *Mailbox) Message(id MessageID) *Message {
	if id < 0 || int(id) >= len(mb.messages) {
		return nil
	}
	return mb.messages[id]
}

// Messages returns every attached message in ID order.
func (mb *Mailbox) Messages() []*Message {
	result := make([]*Message, 0, len(mb.messages))
	for _, m := range mb.messages {
		if m.Conversation != NoConversation {
			result = append(result, m)
		}
	}
	return result
}

// MessageIDs returns the IDs of every attached message in ID order.
func (mb *Mailbox) MessageIDs() []MessageID {
	msgs := mb.Messages()
	ids := make([]MessageID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

// MessageCount returns the number of attached messages.
func (mb *Mailbox) MessageCount() int {
	return len(mb.Messages())
}

// SetReplyProbability records an externally predicted reply probability.
func (mb *Mailbox) SetReplyProbability(id MessageID, p float64) {
	if msg := mb.Message(id); msg != nil {
		msg.ReplyProbability = p
	}
}

// Conversation returns the conversation with the given ID or nil.
func (mb *Mailbox) Conversation(id ConversationID) *Conversation {
	if id < 0 || int(id) >= len(mb.conversations) {
		return nil
	}
	return mb.conversations[id]
}

// ConversationByKey looks up a conversation by its thread key.
func (mb *Mailbox) ConversationByKey(key string) *Conversation {
	id, ok := mb.conversationsByKey[key]
	if !ok {
		return nil
	}
	return mb.conversations[id]
}

// Conversations returns every conversation in creation order.
func (mb *Mailbox) Conversations() []*Conversation {
	return mb.conversations
}

// ConversationOf returns the conversation a message belongs to, or nil.
func (mb *Mailbox) ConversationOf(id MessageID) *Conversation {
	msg := mb.Message(id)
	if msg == nil {
		return nil
	}
	return mb.Conversation(msg.Conversation)
}

// Folder returns the folder with the given ID or nil.
func (mb *Mailbox) Folder(id FolderID) *Folder {
	if id < 0 || int(id) >= len(mb.folders) {
		return nil
	}
	return mb.folders[id]
}

// FolderByName looks up a folder by its exact name.
func (mb *Mailbox) FolderByName(name string) *Folder {
	id, ok := mb.foldersByName[name]
	if !ok {
		return nil
	}
	return mb.folders[id]
}

// Folders returns every folder in creation order.
func (mb *Mailbox) Folders() []*Folder {
	return mb.folders
}

// FolderOf returns the folder a message is filed in, or nil.
func (mb *Mailbox) FolderOf(id MessageID) *Folder {
	msg := mb.Message(id)
	if msg == nil {
		return nil
	}
	return mb.Folder(msg.Folder)
}

// EnsureFolder returns the folder with the given name, creating it if needed.
func (mb *Mailbox) EnsureFolder(name string) *Folder {
	if id, ok := mb.foldersByName[name]; ok {
		return mb.folders[id]
	}
	f := &Folder{ID: FolderID(len(mb.folders)), Name: name}
	mb.folders = append(mb.folders, f)
	mb.foldersByName[name] = f.ID
	return f
}

// IsFromMe reports whether the message was sent by the mailbox owner.
func (mb *Mailbox) IsFromMe(id MessageID) bool {
	msg := mb.Message(id)
	if msg == nil {
		return false
	}
	return mb.directory.IsMe(msg.From)
}

// IsToMe reports whether the mailbox owner is on the To line.
func (mb *Mailbox) IsToMe(id MessageID) bool {
	msg := mb.Message(id)
	if msg == nil {
		return false
	}
	return mb.anyMe(msg.To)
}

// IsCcMe reports whether the mailbox owner is on the Cc line.
func (mb *Mailbox) IsCcMe(id MessageID) bool {
	msg := mb.Message(id)
	if msg == nil {
		return false
	}
	return mb.anyMe(msg.Cc)
}

// Owner returns the person of the mailbox owner, or NoPerson when no identity is marked as me.
func (mb *Mailbox) Owner() contacts.PersonID {
	for _, id := range mb.directory.Me() {
		if p := mb.directory.PersonOf(id); p != contacts.NoPerson {
			return p
		}
	}
	return contacts.NoPerson
}

// SenderPerson returns the person who sent the message.
func (mb *Mailbox) SenderPerson(id MessageID) contacts.PersonID {
	msg := mb.Message(id)
	if msg == nil {
		return contacts.NoPerson
	}
	return mb.directory.PersonOf(msg.From)
}

// RecipientPersons returns the persons on the To (cc=false) or Cc (cc=true) line.
func (mb *Mailbox) RecipientPersons(id MessageID, cc bool) []contacts.PersonID {
	msg := mb.Message(id)
	if msg == nil {
		return nil
	}
	list := msg.To
	if cc {
		list = msg.Cc
	}
	result := make([]contacts.PersonID, 0, len(list))
	for _, iid := range list {
		if pid := mb.directory.PersonOf(iid); pid != contacts.NoPerson {
			result = append(result, pid)
		}
	}
	return result
}

// MessagesOf returns the messages a person sent or received, in ID order.
func (mb *Mailbox) MessagesOf(person contacts.PersonID) []MessageID {
	p, ok := mb.directory.Person(person)
	if !ok {
		return nil
	}

	seen := make(map[MessageID]struct{})
	var result []MessageID
	for _, iid := range p.Identities {
		for _, id := range mb.byIdentity[iid] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (mb *Mailbox) ensureConversation(key string) *Conversation {
	if id, ok := mb.conversationsByKey[key]; ok {
		return mb.conversations[id]
	}
	c := &Conversation{ID: ConversationID(len(mb.conversations)), Key: key}
	mb.conversations = append(mb.conversations, c)
	mb.conversationsByKey[key] = c.ID
	return c
}

func (mb *Mailbox) resolveAll(addrs []Address) []contacts.IdentityID {
	if len(addrs) == 0 {
		return nil
	}
	ids := make([]contacts.IdentityID, 0, len(addrs))
	for _, a := range addrs {
		if id := mb.directory.Resolve(a.Name, a.Email); id != contacts.NoIdentity {
			ids = append(ids, id)
		}
	}
	return ids
}

func (mb *Mailbox) indexParticipants(msg *Message) {
	add := func(iid contacts.IdentityID) {
		if iid == contacts.NoIdentity {
			return
		}
		ids := mb.byIdentity[iid]
		if len(ids) > 0 && ids[len(ids)-1] == msg.ID {
			return
		}
		mb.byIdentity[iid] = append(ids, msg.ID)
	}
	add(msg.From)
	for _, iid := range msg.To {
		add(iid)
	}
	for _, iid := range msg.Cc {
		add(iid)
	}
}

func (mb *Mailbox) anyMe(ids []contacts.IdentityID) bool {
	for _, iid := range ids {
		if mb.directory.IsMe(iid) {
			return true
		}
	}
	return false
}

func removeMessageID(ids []MessageID, id MessageID) []MessageID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
