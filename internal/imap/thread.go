package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	sortthread "github.com/emersion/go-imap-sortthread"
	"github.com/emersion/go-imap/client"
)

const threadCapability = "THREAD=REFERENCES"

// SupportsThread reports whether the server can run THREAD with the REFERENCES algorithm.
func SupportsThread(c *client.Client) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("client is nil")
	}
	ok, err := c.Support(threadCapability)
	if err != nil {
		return false, fmt.Errorf("failed to read capabilities: %w", err)
	}
	return ok, nil
}

// RunThreadCommand runs the THREAD command and returns the thread structure.
// Uses the REFERENCES algorithm to build thread relationships.
func RunThreadCommand(c *client.Client) ([]*sortthread.Thread, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	threadClient := sortthread.NewThreadClient(c)
	threads, err := threadClient.UidThread(sortthread.References, imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("THREAD command returned error: %w", err)
	}

	return threads, nil
}

// ThreadRoots flattens thread trees into a UID -> root UID map.
// UIDs are returned in tree order; every top-level thread is its own root.
func ThreadRoots(threads []*sortthread.Thread) (map[uint32]uint32, []uint32) {
	roots := make(map[uint32]uint32)
	var uids []uint32

	var walk func(*sortthread.Thread, uint32)
	walk = func(thread *sortthread.Thread, rootUID uint32) {
		if thread == nil {
			return
		}
		roots[thread.Id] = rootUID
		uids = append(uids, thread.Id)
		for _, child := range thread.Children {
			walk(child, rootUID)
		}
	}

	for _, thread := range threads {
		if thread == nil {
			continue
		}
		walk(thread, thread.Id)
	}
	return roots, uids
}

// SingletonRoots makes every UID its own root, for servers without THREAD.
func SingletonRoots(uids []uint32) map[uint32]uint32 {
	roots := make(map[uint32]uint32, len(uids))
	for _, uid := range uids {
		roots[uid] = uid
	}
	return roots
}
