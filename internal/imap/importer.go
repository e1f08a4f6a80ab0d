package imap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotnet/mbmlbook-sub000/internal/db"
	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultBatchSize = 50

// ImportStats summarises one import run.
type ImportStats struct {
	Folders  int
	Threads  int
	Messages int
	Skipped  int
}

// Importer copies a mailbox from an IMAP server into Postgres.
type Importer struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	batchSize int
}

// NewImporter creates an importer writing through pool.
func NewImporter(pool *pgxpool.Pool, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{pool: pool, logger: logger, batchSize: defaultBatchSize}
}

// ImportAll imports every selectable folder.
func (im *Importer) ImportAll(ctx context.Context, c *client.Client, userID string) (ImportStats, error) {
	folders, err := ListFolders(c)
	if err != nil {
		return ImportStats{}, err
	}

	var total ImportStats
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		stats, err := im.ImportFolder(ctx, c, userID, folder)
		if err != nil {
			return total, fmt.Errorf("failed to import folder %s: %w", folder, err)
		}
		total.Folders++
		total.Threads += stats.Threads
		total.Messages += stats.Messages
		total.Skipped += stats.Skipped
	}

	im.logger.Info("IMAP import finished",
		zap.Int("folders", total.Folders),
		zap.Int("threads", total.Threads),
		zap.Int("messages", total.Messages),
		zap.Int("skipped", total.Skipped))
	return total, nil
}

// ImportFolder imports the messages of one folder newer than the highest UID already stored.
func (im *Importer) ImportFolder(ctx context.Context, c *client.Client, userID, folderName string) (ImportStats, error) {
	var stats ImportStats
	log := im.logger.With(zap.String("folder", folderName))

	mbox, err := c.Select(folderName, true)
	if err != nil {
		return stats, fmt.Errorf("failed to select folder: %w", err)
	}
	log.Debug("selected folder", zap.Uint32("messages", mbox.Messages))

	lastUID, err := db.MaxIMAPUID(ctx, im.pool, userID, folderName)
	if err != nil {
		return stats, err
	}

	roots, uids, err := im.threadRoots(c, log)
	if err != nil {
		return stats, err
	}
	if len(uids) == 0 {
		log.Debug("no messages in folder")
		return stats, nil
	}

	headers, err := FetchMessageHeaders(c, uids)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch message headers: %w", err)
	}
	byUID := make(map[uint32]*imap.Message, len(headers))
	for _, h := range headers {
		byUID[h.Uid] = h
	}

	threadIDs := make(map[uint32]string)
	var pending []uint32
	for _, uid := range uids {
		if uid <= lastUID {
			continue
		}
		rootUID := roots[uid]
		if _, ok := threadIDs[rootUID]; !ok {
			thread, created, err := im.ensureThread(ctx, userID, folderName, rootUID, byUID[rootUID])
			if err != nil {
				return stats, err
			}
			threadIDs[rootUID] = thread.ID
			if created {
				stats.Threads++
			}
		}
		pending = append(pending, uid)
	}

	for start := 0; start < len(pending); start += im.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+im.batchSize, len(pending))

		messages, err := FetchFullMessages(c, pending[start:end])
		if err != nil {
			return stats, fmt.Errorf("failed to fetch messages: %w", err)
		}

		for _, imapMsg := range messages {
			msg, err := ParseMessage(imapMsg, threadIDs[roots[imapMsg.Uid]], userID, folderName)
			if msg == nil {
				log.Warn("failed to parse message", zap.Uint32("uid", imapMsg.Uid), zap.Error(err))
				stats.Skipped++
				continue
			}
			if err != nil {
				log.Warn("saving message without body", zap.Uint32("uid", imapMsg.Uid), zap.Error(err))
			}
			if err := db.SaveMessage(ctx, im.pool, msg); err != nil {
				return stats, err
			}
			stats.Messages++
		}
	}

	log.Info("imported folder",
		zap.Int("threads", stats.Threads),
		zap.Int("messages", stats.Messages),
		zap.Uint32("after_uid", lastUID))
	return stats, nil
}

// threadRoots uses THREAD when the server supports it, otherwise every message is its own root
// and conversations are joined later by In-Reply-To.
func (im *Importer) threadRoots(c *client.Client, log *zap.Logger) (map[uint32]uint32, []uint32, error) {
	supported, err := SupportsThread(c)
	if err != nil {
		return nil, nil, err
	}
	if supported {
		threads, err := RunThreadCommand(c)
		if err != nil {
			return nil, nil, err
		}
		roots, uids := ThreadRoots(threads)
		log.Debug("threaded folder", zap.Int("threads", len(threads)), zap.Int("messages", len(uids)))
		return roots, uids, nil
	}

	uids, err := SearchUIDsSince(c, 1)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("server has no THREAD support, using singleton threads", zap.Int("messages", len(uids)))
	return SingletonRoots(uids), uids, nil
}

func (im *Importer) ensureThread(ctx context.Context, userID, folderName string, rootUID uint32, root *imap.Message) (*models.Thread, bool, error) {
	stableID := ""
	subject := ""
	if root != nil {
		stableID = ExtractStableThreadID(root.Envelope)
		if root.Envelope != nil {
			subject = root.Envelope.Subject
		}
	}
	if stableID == "" {
		stableID = fmt.Sprintf("uid:%s:%d", folderName, rootUID)
	}

	thread, err := db.GetThreadByStableID(ctx, im.pool, userID, stableID)
	if err == nil {
		return thread, false, nil
	}
	if !errors.Is(err, db.ErrThreadNotFound) {
		return nil, false, err
	}

	thread = &models.Thread{UserID: userID, StableThreadID: stableID, Subject: subject}
	if err := db.SaveThread(ctx, im.pool, thread); err != nil {
		return nil, false, err
	}
	return thread, true, nil
}
