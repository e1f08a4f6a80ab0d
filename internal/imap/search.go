package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// SearchUIDsSince returns the UIDs >= minUID in the selected folder.
func SearchUIDsSince(c *client.Client, minUID uint32) ([]uint32, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if minUID == 0 {
		minUID = 1
	}

	uidSet := new(imap.SeqSet)
	uidSet.AddRange(minUID, 0)

	criteria := imap.NewSearchCriteria()
	criteria.Uid = uidSet

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search UIDs: %w", err)
	}

	// A range ending in * always matches the last message, even below minUID.
	result := uids[:0]
	for _, uid := range uids {
		if uid >= minUID {
			result = append(result, uid)
		}
	}
	return result, nil
}
