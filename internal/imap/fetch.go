package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// fullBodySection is BODY.PEEK[] so fetching does not set \Seen.
var fullBodySection = &imap.BodySectionName{Peek: true}

// FetchMessageHeaders fetches message headers for the given UIDs.
func FetchMessageHeaders(c *client.Client, uids []uint32) ([]*imap.Message, error) {
	return fetch(c, uids, []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
	})
}

// FetchFullMessages fetches headers and the complete RFC 822 body for the given UIDs.
func FetchFullMessages(c *client.Client, uids []uint32) ([]*imap.Message, error) {
	return fetch(c, uids, []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		fullBodySection.FetchItem(),
	})
}

func fetch(c *client.Client, uids []uint32, items []imap.FetchItem) ([]*imap.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	if len(uids) == 0 {
		return []*imap.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return result, nil
}
