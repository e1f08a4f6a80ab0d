package db

import (
	"testing"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day int) *time.Time {
	t := time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want mailbox.Address
	}{
		{name: "name and email", in: "Alice Smith <alice@example.com>", want: mailbox.Address{Name: "Alice Smith", Email: "alice@example.com"}},
		{name: "bare email", in: "bob@example.com", want: mailbox.Address{Email: "bob@example.com"}},
		{name: "unparseable", in: "not an address", want: mailbox.Address{Email: "not an address"}},
		{name: "empty", in: "  ", want: mailbox.Address{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAddress(tt.in))
		})
	}

	assert.Len(t, parseAddresses([]string{"a@example.com", "", "b@example.com"}), 2)
}

func TestConversationKeysJoinRepliesAcrossFolders(t *testing.T) {
	messages := []*models.Message{
		{MessageIDHeader: "<q1@example.com>", StableThreadID: "<q1@example.com>", IMAPFolderName: "INBOX", SentAt: at(1)},
		{MessageIDHeader: "<r1@example.com>", InReplyTo: "<q1@example.com>", StableThreadID: "<r1@example.com>", IMAPFolderName: "Sent", SentAt: at(2)},
		{MessageIDHeader: "<r2@example.com>", InReplyTo: "<r1@example.com>", StableThreadID: "<r2@example.com>", IMAPFolderName: "INBOX", SentAt: at(3)},
		{MessageIDHeader: "<other@example.com>", StableThreadID: "<other@example.com>", IMAPFolderName: "INBOX", SentAt: at(4)},
		{MessageIDHeader: "<x@example.com>", InReplyTo: "<missing@example.com>", StableThreadID: "<x@example.com>", IMAPFolderName: "INBOX", SentAt: at(5)},
	}

	keys := conversationKeys(messages)

	assert.Equal(t, []string{
		"<q1@example.com>",
		"<q1@example.com>",
		"<q1@example.com>",
		"<other@example.com>",
		"<x@example.com>",
	}, keys)
}

func TestConversationKeysFallBackToSubject(t *testing.T) {
	messages := []*models.Message{
		{Subject: "Budget"},
		{Subject: "RE: budget"},
	}
	keys := conversationKeys(messages)
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, mailbox.ConversationKeyForSubject("Budget"), keys[0])
}

func TestBuildMailbox(t *testing.T) {
	messages := []*models.Message{
		{
			MessageIDHeader: "<q1@example.com>",
			StableThreadID:  "<q1@example.com>",
			IMAPFolderName:  "INBOX",
			FromAddress:     "Boss <boss@example.com>",
			ToAddresses:     []string{"Me <me@example.com>"},
			Subject:         "Plan",
			BodyText:        "Can you review the plan",
			SentAt:          at(1),
			Importance:      int(mailbox.ImportanceHigh),
			Attachments:     []models.Attachment{{Filename: "plan.pdf", SizeBytes: 10}},
		},
		{
			MessageIDHeader: "<r1@example.com>",
			InReplyTo:       "<q1@example.com>",
			StableThreadID:  "<r1@example.com>",
			IMAPFolderName:  "Sent",
			FromAddress:     "me@example.com",
			ToAddresses:     []string{"boss@example.com"},
			Subject:         "RE: Plan",
			SentAt:          at(2),
			ReceivedAt:      at(3),
		},
	}
	links := []models.ManagerLink{{PersonEmail: "me@example.com", ManagerEmail: "boss@example.com"}}

	mb, err := BuildMailbox(messages, "me@example.com", links, 1)
	require.NoError(t, err)

	require.Equal(t, 2, mb.MessageCount())
	assert.Len(t, mb.Conversations(), 1)
	assert.True(t, mb.IsToMe(0))
	assert.True(t, mb.IsFromMe(1))
	assert.True(t, mb.Message(0).HasAttachments())
	assert.Equal(t, mailbox.ImportanceHigh, mb.Message(0).Importance)
	assert.Equal(t, *at(1), mb.Message(0).DateReceived, "received falls back to sent")
	assert.Equal(t, *at(3), mb.Message(1).DateReceived)

	dir := mb.Directory()
	assert.Equal(t, mb.SenderPerson(0), dir.ManagerOf(mb.Owner()))
}

func TestBuildMailboxRejectsManagerCycle(t *testing.T) {
	links := []models.ManagerLink{
		{PersonEmail: "a@example.com", ManagerEmail: "b@example.com"},
		{PersonEmail: "b@example.com", ManagerEmail: "a@example.com"},
	}
	_, err := BuildMailbox(nil, "me@example.com", links, 1)
	assert.Error(t, err)
}

func TestBuildMailboxMergesDuplicatePeople(t *testing.T) {
	messages := []*models.Message{
		{
			MessageIDHeader: "<w1@example.com>",
			IMAPFolderName:  "INBOX",
			FromAddress:     "Carol Diaz <carol@work.com>",
			ToAddresses:     []string{"me@example.com"},
			Subject:         "Offsite",
			SentAt:          at(1),
		},
		{
			MessageIDHeader: "<h1@example.com>",
			IMAPFolderName:  "INBOX",
			FromAddress:     "carol diaz <carol@home.com>",
			ToAddresses:     []string{"me@example.com"},
			Subject:         "Weekend",
			SentAt:          at(2),
		},
	}
	links := []models.ManagerLink{
		{PersonEmail: "carol@home.com", ManagerEmail: "carol@work.com"},
		{PersonEmail: "carol@work.com", ManagerEmail: "me@example.com"},
	}

	tests := []struct {
		name            string
		mergeConfidence float64
		links           []models.ManagerLink
		expectMerged    bool
	}{
		{name: "same display name merges", mergeConfidence: 1, links: links, expectMerged: true},
		{name: "threshold above name confidence keeps people apart", mergeConfidence: 2, expectMerged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, err := BuildMailbox(messages, "me@example.com", tt.links, tt.mergeConfidence)
			require.NoError(t, err)

			work, home := mb.SenderPerson(0), mb.SenderPerson(1)
			if !tt.expectMerged {
				assert.NotEqual(t, work, home)
				return
			}
			assert.Equal(t, work, home)
			assert.Len(t, mb.MessagesOf(work), 2)
			assert.Equal(t, mb.Owner(), mb.Directory().ManagerOf(work), "links between merged addresses are skipped")
		})
	}
}
