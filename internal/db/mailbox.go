package db

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadMailbox builds the in-memory mailbox of a user from the stored messages.
// The user's email is marked as "me" and manager links are applied to the directory.
func LoadMailbox(ctx context.Context, pool *pgxpool.Pool, user *models.User, mergeConfidence float64) (*mailbox.Mailbox, error) {
	messages, err := GetMessagesForUser(ctx, pool, user.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	attachments, err := GetAttachmentsForMessages(ctx, pool, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		for _, att := range attachments[m.ID] {
			m.Attachments = append(m.Attachments, *att)
		}
	}

	links, err := GetManagers(ctx, pool, user.ID)
	if err != nil {
		return nil, err
	}

	return BuildMailbox(messages, user.Email, links, mergeConfidence)
}

// BuildMailbox turns stored messages into a mailbox. Threads joined by In-Reply-To
// across folders end up in the same conversation. People sharing a display name known
// with at least mergeConfidence are merged before manager links are applied.
func BuildMailbox(messages []*models.Message, ownerEmail string, links []models.ManagerLink, mergeConfidence float64) (*mailbox.Mailbox, error) {
	mb := mailbox.New(nil)
	dir := mb.Directory()
	if ownerEmail != "" {
		dir.MarkMe(dir.Resolve("", ownerEmail))
	}

	keys := conversationKeys(messages)
	for i, m := range messages {
		mb.AddMessage(toNewMessage(m, keys[i]))
	}

	dir.MergeDuplicates(mergeConfidence)

	for _, link := range links {
		person := dir.PersonOf(dir.Resolve("", link.PersonEmail))
		manager := dir.PersonOf(dir.Resolve("", link.ManagerEmail))
		if person == manager {
			continue
		}
		if err := dir.SetManager(person, manager); err != nil {
			return nil, fmt.Errorf("failed to set manager of %s: %w", link.PersonEmail, err)
		}
	}

	return mb, nil
}

func toNewMessage(m *models.Message, key string) mailbox.NewMessage {
	var sent, received time.Time
	if m.SentAt != nil {
		sent = *m.SentAt
	}
	if m.ReceivedAt != nil {
		received = *m.ReceivedAt
	} else {
		received = sent
	}

	atts := make([]mailbox.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		atts = append(atts, mailbox.Attachment{
			Filename:  a.Filename,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
			IsInline:  a.IsInline,
		})
	}

	return mailbox.NewMessage{
		ConversationKey:   key,
		FolderName:        m.IMAPFolderName,
		InternetMessageID: m.MessageIDHeader,
		InReplyToID:       m.InReplyTo,
		Subject:           m.Subject,
		Body:              m.BodyText,
		From:              parseAddress(m.FromAddress),
		To:                parseAddresses(m.ToAddresses),
		Cc:                parseAddresses(m.CCAddresses),
		DateSent:          sent,
		DateReceived:      received,
		IsRead:            m.IsRead,
		IsFlagged:         m.IsStarred,
		Importance:        mailbox.Importance(m.Importance),
		Attachments:       atts,
	}
}

// conversationKeys returns one conversation key per message. Messages whose
// In-Reply-To points at another stored message share that message's key, so
// a reply filed in Sent joins the inbox thread it answers.
func conversationKeys(messages []*models.Message) []string {
	parent := make(map[string]string)
	var find func(string) string
	find = func(k string) string {
		p, ok := parent[k]
		if !ok || p == k {
			parent[k] = k
			return k
		}
		root := find(p)
		parent[k] = root
		return root
	}

	// The first key seen wins, which keeps keys stable as newer replies arrive.
	order := make(map[string]int)
	keyOf := func(m *models.Message) string {
		k := m.StableThreadID
		if k == "" {
			k = mailbox.ConversationKeyForSubject(m.Subject)
		}
		if _, ok := order[k]; !ok {
			order[k] = len(order)
		}
		return k
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if order[rb] < order[ra] {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	own := make([]string, len(messages))
	byHeader := make(map[string]string)
	for i, m := range messages {
		own[i] = keyOf(m)
		find(own[i])
		if id := normalizeMessageID(m.MessageIDHeader); id != "" {
			if existing, ok := byHeader[id]; ok {
				union(existing, own[i])
			} else {
				byHeader[id] = own[i]
			}
		}
	}
	for i, m := range messages {
		if target, ok := byHeader[normalizeMessageID(m.InReplyTo)]; ok && m.InReplyTo != "" {
			union(target, own[i])
		}
	}

	keys := make([]string, len(messages))
	for i := range messages {
		keys[i] = find(own[i])
	}
	return keys
}

func normalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// parseAddress splits "Name <user@host>" into its parts. Unparseable input is kept as the email.
func parseAddress(s string) mailbox.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return mailbox.Address{}
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return mailbox.Address{Email: s}
	}
	return mailbox.Address{Name: addr.Name, Email: addr.Address}
}

func parseAddresses(list []string) []mailbox.Address {
	result := make([]mailbox.Address, 0, len(list))
	for _, s := range list {
		if a := parseAddress(s); a.Email != "" || a.Name != "" {
			result = append(result, a)
		}
	}
	return result
}
