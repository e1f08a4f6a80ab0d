package mailbox

import (
	"strings"
	"time"
	"unicode"

	"github.com/dotnet/mbmlbook-sub000/internal/contacts"
)

// MessageID identifies a message inside a Mailbox.
type MessageID int

// Importance mirrors the X-Priority / Importance header.
type Importance int

const (
	ImportanceNormal Importance = iota
	ImportanceLow
	ImportanceHigh
)

// Attachment describes one attached file.
type Attachment struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	IsInline  bool
}

// Message is a single email. Core fields are fixed once the message is added to a mailbox;
// threading state lives in the threading package, keyed by ID.
type Message struct {
	ID                MessageID
	InternetMessageID string
	InReplyToID       string
	Subject           string
	Body              string
	From              contacts.IdentityID
	To                []contacts.IdentityID
	Cc                []contacts.IdentityID
	DateSent          time.Time
	DateReceived      time.Time
	Folder            FolderID
	Conversation      ConversationID
	IsRead            bool
	IsFlagged         bool
	Importance        Importance
	Attachments       []Attachment

	// ReplyProbability is filled in from external predictions.
	ReplyProbability float64
}

// HasAttachments reports whether the message carries any non-inline attachment.
func (m *Message) HasAttachments() bool {
	for _, a := range m.Attachments {
		if !a.IsInline {
			return true
		}
	}
	return false
}

// SubjectPrefix classifies the reply/forward prefix of the subject.
func (m *Message) SubjectPrefix() Prefix {
	return ClassifyPrefix(m.Subject)
}

// RecipientCount returns the number of To and Cc recipients.
func (m *Message) RecipientCount() int {
	return len(m.To) + len(m.Cc)
}

// BodyWordCount counts whitespace separated words in the body.
func (m *Message) BodyWordCount() int {
	return len(strings.FieldsFunc(m.Body, unicode.IsSpace))
}

// SubjectWordCount counts words in the subject with reply/forward prefixes removed.
func (m *Message) SubjectWordCount() int {
	return len(strings.Fields(StripSubjectPrefixes(m.Subject)))
}

// Address is a raw name/email pair before it is resolved against the directory.
type Address struct {
	Name  string
	Email string
}

// NewMessage is the ingestion form of a message.
type NewMessage struct {
	ConversationKey   string
	FolderName        string
	InternetMessageID string
	InReplyToID       string
	Subject           string
	Body              string
	From              Address
	To                []Address
	Cc                []Address
	DateSent          time.Time
	DateReceived      time.Time
	IsRead            bool
	IsFlagged         bool
	Importance        Importance
	Attachments       []Attachment
}
