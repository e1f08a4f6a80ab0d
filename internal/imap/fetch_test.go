package imap

import (
	"testing"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/testutil"
	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMessageHeaders(t *testing.T) {
	t.Run("returns error for nil client", func(t *testing.T) {
		_, err := FetchMessageHeaders(nil, []uint32{1, 2, 3})
		require.Error(t, err)
		assert.Equal(t, "client is nil", err.Error())
	})

	t.Run("returns empty slice for empty UIDs", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		defer server.Close()

		client, cleanup := server.Connect(t)
		defer cleanup()

		result, err := FetchMessageHeaders(client, []uint32{})
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("fetches headers and full bodies", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		defer server.Close()

		sentAt := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
		uid := server.AddMessage(t, "INBOX", testutil.TestMessage{
			MessageID: "<test@example.com>",
			Subject:   "Test Subject",
			From:      "from@example.com",
			To:        "to@example.com",
			SentAt:    sentAt,
			Body:      "hello there",
		})

		client, cleanup := server.Connect(t)
		defer cleanup()

		_, err := client.Select("INBOX", true)
		require.NoError(t, err)

		headers, err := FetchMessageHeaders(client, []uint32{uid})
		require.NoError(t, err)
		require.Len(t, headers, 1)
		assert.Equal(t, "<test@example.com>", headers[0].Envelope.MessageId)
		assert.Nil(t, headers[0].GetBody(fullBodySection))

		full, err := FetchFullMessages(client, []uint32{uid})
		require.NoError(t, err)
		require.Len(t, full, 1)
		assert.NotNil(t, full[0].GetBody(fullBodySection))
		assert.Contains(t, full[0].Flags, imap.SeenFlag)
	})
}

func TestSearchUIDsSince(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	defer server.Close()

	now := time.Now()
	uid1 := server.AddMessage(t, "INBOX", testutil.TestMessage{MessageID: "<msg1@test>", Subject: "Subject 1", From: "from@test.com", To: "to@test.com", SentAt: now.Add(-2 * time.Hour)})
	uid2 := server.AddMessage(t, "INBOX", testutil.TestMessage{MessageID: "<msg2@test>", Subject: "Subject 2", From: "from@test.com", To: "to@test.com", SentAt: now.Add(-time.Hour)})
	uid3 := server.AddMessage(t, "INBOX", testutil.TestMessage{MessageID: "<msg3@test>", Subject: "Subject 3", From: "from@test.com", To: "to@test.com", SentAt: now})

	client, cleanup := server.Connect(t)
	defer cleanup()

	_, err := client.Select("INBOX", true)
	require.NoError(t, err)

	t.Run("finds all UIDs from 1", func(t *testing.T) {
		uids, err := SearchUIDsSince(client, 0)
		require.NoError(t, err)
		// The memory backend seeds INBOX with one message.
		assert.Len(t, uids, 4)
		assert.Subset(t, uids, []uint32{uid1, uid2, uid3})
	})

	t.Run("finds only UIDs >= minUID", func(t *testing.T) {
		uids, err := SearchUIDsSince(client, uid2)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint32{uid2, uid3}, uids)
	})

	t.Run("returns nothing past the last UID", func(t *testing.T) {
		uids, err := SearchUIDsSince(client, uid3+10)
		require.NoError(t, err)
		assert.Empty(t, uids)
	})

	t.Run("returns error for nil client", func(t *testing.T) {
		_, err := SearchUIDsSince(nil, 1)
		assert.Error(t, err)
	})
}
