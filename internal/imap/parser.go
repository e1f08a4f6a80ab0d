package imap

import (
	"fmt"
	"io"
	"strings"

	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
)

// ParseMessage converts an IMAP message to our Message model.
// When the body cannot be parsed, the header-only message is returned together with the error.
func ParseMessage(imapMsg *imap.Message, threadID, userID, folderName string) (*models.Message, error) {
	if imapMsg == nil {
		return nil, fmt.Errorf("imap message is nil")
	}

	isRead := false
	isStarred := false
	for _, flag := range imapMsg.Flags {
		if flag == imap.SeenFlag {
			isRead = true
		}
		if flag == imap.FlaggedFlag {
			isStarred = true
		}
	}

	msg := &models.Message{
		ThreadID:       threadID,
		UserID:         userID,
		IMAPUID:        int64(imapMsg.Uid),
		IMAPFolderName: folderName,
		IsRead:         isRead,
		IsStarred:      isStarred,
	}

	if !imapMsg.InternalDate.IsZero() {
		received := imapMsg.InternalDate
		msg.ReceivedAt = &received
	}

	if env := imapMsg.Envelope; env != nil {
		if len(env.From) > 0 {
			msg.FromAddress = formatAddress(env.From[0])
		}
		msg.ToAddresses = formatAddressList(env.To)
		msg.CCAddresses = formatAddressList(env.Cc)
		msg.Subject = env.Subject
		msg.MessageIDHeader = env.MessageId
		msg.InReplyTo = firstMessageID(env.InReplyTo)
		if !env.Date.IsZero() {
			sent := env.Date
			msg.SentAt = &sent
		}
	}

	if bodyReader := imapMsg.GetBody(fullBodySection); bodyReader != nil {
		if err := parseBody(bodyReader, msg); err != nil {
			return msg, err
		}
	}

	return msg, nil
}

// parseBody parses the email body using enmime.
func parseBody(bodyReader io.Reader, msg *models.Message) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse email body: %w", err)
	}

	// enmime falls back to a text rendering of the HTML part.
	msg.BodyText = envelope.Text
	msg.Importance = parseImportance(envelope.GetHeader("Importance"), envelope.GetHeader("X-Priority"))
	if msg.InReplyTo == "" {
		msg.InReplyTo = firstMessageID(envelope.GetHeader("In-Reply-To"))
	}

	for _, part := range envelope.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Filename:  part.FileName,
			MimeType:  part.ContentType,
			SizeBytes: int64(len(part.Content)),
			ContentID: part.ContentID,
		})
	}
	for _, part := range envelope.Inlines {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Filename:  part.FileName,
			MimeType:  part.ContentType,
			SizeBytes: int64(len(part.Content)),
			IsInline:  true,
			ContentID: part.ContentID,
		})
	}

	return nil
}

// parseImportance reads the Importance header, falling back to X-Priority (1-2 high, 4-5 low).
func parseImportance(importance, xPriority string) int {
	switch strings.ToLower(strings.TrimSpace(importance)) {
	case "high":
		return int(mailbox.ImportanceHigh)
	case "low":
		return int(mailbox.ImportanceLow)
	}

	priority := strings.TrimSpace(xPriority)
	if priority == "" {
		return int(mailbox.ImportanceNormal)
	}
	switch priority[0] {
	case '1', '2':
		return int(mailbox.ImportanceHigh)
	case '4', '5':
		return int(mailbox.ImportanceLow)
	default:
		return int(mailbox.ImportanceNormal)
	}
}

// firstMessageID returns the first <id> token of an In-Reply-To value.
func firstMessageID(header string) string {
	header = strings.TrimSpace(header)
	start := strings.Index(header, "<")
	if start < 0 {
		return header
	}
	end := strings.Index(header[start:], ">")
	if end < 0 {
		return header[start:]
	}
	return header[start : start+end+1]
}

// formatAddress formats an IMAP address to a string.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddressList formats a list of IMAP addresses.
func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		formatted := formatAddress(address)
		if formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}

// ExtractStableThreadID extracts the stable thread ID from a message.
// This uses the Message-ID header of the root message.
func ExtractStableThreadID(envelope *imap.Envelope) string {
	if envelope == nil || len(envelope.MessageId) == 0 {
		return ""
	}
	return envelope.MessageId
}
