package models

import "time"

// Thread is a server-side thread as reported by IMAP THREAD, keyed by the root's Message-ID.
type Thread struct {
	ID             string    `json:"id"`
	StableThreadID string    `json:"stable_thread_id"`
	Subject        string    `json:"subject"`
	UserID         string    `json:"user_id"`
	Messages       []Message `json:"messages,omitempty"`
}

// Message is a stored email. Addresses are kept as formatted "Name <user@host>" strings.
type Message struct {
	ID              string       `json:"id"`
	ThreadID        string       `json:"thread_id"`
	UserID          string       `json:"user_id"`
	IMAPUID         int64        `json:"imap_uid"`
	IMAPFolderName  string       `json:"imap_folder_name"`
	MessageIDHeader string       `json:"message_id_header"`
	InReplyTo       string       `json:"in_reply_to"`
	FromAddress     string       `json:"from_address"`
	ToAddresses     []string     `json:"to_addresses"`
	CCAddresses     []string     `json:"cc_addresses"`
	SentAt          *time.Time   `json:"sent_at"`
	ReceivedAt      *time.Time   `json:"received_at"`
	Subject         string       `json:"subject"`
	BodyText        string       `json:"body_text"`
	IsRead          bool         `json:"is_read"`
	IsStarred       bool         `json:"is_starred"`
	Importance      int          `json:"importance"`
	Attachments     []Attachment `json:"attachments,omitempty"`

	// StableThreadID is filled in when loading, from the message's thread.
	StableThreadID string `json:"stable_thread_id,omitempty"`
}

type Attachment struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	IsInline  bool   `json:"is_inline"`
	ContentID string `json:"content_id,omitempty"`
}
