package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotnet/mbmlbook-sub000/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `
	m.id,
	m.thread_id,
	m.user_id,
	m.imap_uid,
	m.imap_folder_name,
	m.message_id_header,
	m.in_reply_to,
	m.from_address,
	m.to_addresses,
	m.cc_addresses,
	m.sent_at,
	m.received_at,
	m.subject,
	m.body_text,
	m.is_read,
	m.is_starred,
	m.importance,
	t.stable_thread_id`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.UserID,
		&msg.IMAPUID,
		&msg.IMAPFolderName,
		&msg.MessageIDHeader,
		&msg.InReplyTo,
		&msg.FromAddress,
		&msg.ToAddresses,
		&msg.CCAddresses,
		&msg.SentAt,
		&msg.ReceivedAt,
		&msg.Subject,
		&msg.BodyText,
		&msg.IsRead,
		&msg.IsStarred,
		&msg.Importance,
		&msg.StableThreadID,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SaveMessage saves or updates a message and replaces its attachments.
func SaveMessage(ctx context.Context, pool *pgxpool.Pool, message *models.Message) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (
				thread_id,
				user_id,
				imap_uid,
				imap_folder_name,
				message_id_header,
				in_reply_to,
				from_address,
				to_addresses,
				cc_addresses,
				sent_at,
				received_at,
				subject,
				body_text,
				is_read,
				is_starred,
				importance
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (user_id, imap_folder_name, imap_uid) DO UPDATE SET
				thread_id = EXCLUDED.thread_id,
				message_id_header = EXCLUDED.message_id_header,
				in_reply_to = EXCLUDED.in_reply_to,
				from_address = EXCLUDED.from_address,
				to_addresses = EXCLUDED.to_addresses,
				cc_addresses = EXCLUDED.cc_addresses,
				sent_at = EXCLUDED.sent_at,
				received_at = EXCLUDED.received_at,
				subject = EXCLUDED.subject,
				body_text = EXCLUDED.body_text,
				is_read = EXCLUDED.is_read,
				is_starred = EXCLUDED.is_starred,
				importance = EXCLUDED.importance
			RETURNING id
		`,
			message.ThreadID,
			message.UserID,
			message.IMAPUID,
			message.IMAPFolderName,
			message.MessageIDHeader,
			message.InReplyTo,
			message.FromAddress,
			nonNil(message.ToAddresses),
			nonNil(message.CCAddresses),
			message.SentAt,
			message.ReceivedAt,
			message.Subject,
			message.BodyText,
			message.IsRead,
			message.IsStarred,
			message.Importance,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		message.ID = id

		if _, err := tx.Exec(ctx, `DELETE FROM attachments WHERE message_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear attachments: %w", err)
		}
		for i := range message.Attachments {
			att := &message.Attachments[i]
			att.MessageID = id
			err := tx.QueryRow(ctx, `
				INSERT INTO attachments (message_id, filename, mime_type, size_bytes, is_inline, content_id)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, att.MessageID, att.Filename, att.MimeType, att.SizeBytes, att.IsInline, att.ContentID).Scan(&att.ID)
			if err != nil {
				return fmt.Errorf("failed to save attachment: %w", err)
			}
		}
		return nil
	})
}

// GetMessageByUID returns a message by its IMAP UID and folder.
func GetMessageByUID(ctx context.Context, pool *pgxpool.Pool, userID, folderName string, imapUID int64) (*models.Message, error) {
	msg, err := scanMessage(pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		INNER JOIN threads t ON t.id = m.thread_id
		WHERE m.user_id = $1 AND m.imap_folder_name = $2 AND m.imap_uid = $3
	`, userID, folderName, imapUID))

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// GetMessagesForUser returns every message of a user ordered by sent date.
// Attachments are not loaded; see GetAttachmentsForMessages.
func GetMessagesForUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		INNER JOIN threads t ON t.id = m.thread_id
		WHERE m.user_id = $1
		ORDER BY m.sent_at NULLS LAST, m.imap_folder_name, m.imap_uid
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MaxIMAPUID returns the highest stored UID in a folder, or 0 when the folder is empty.
func MaxIMAPUID(ctx context.Context, pool *pgxpool.Pool, userID, folderName string) (uint32, error) {
	var uid int64
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(imap_uid), 0)
		FROM messages
		WHERE user_id = $1 AND imap_folder_name = $2
	`, userID, folderName).Scan(&uid)
	if err != nil {
		return 0, fmt.Errorf("failed to get max UID: %w", err)
	}
	return uint32(uid), nil
}

// GetAttachmentsForMessages returns all attachments for multiple messages in a single query.
// Returns a map from message ID to a slice of attachments.
func GetAttachmentsForMessages(ctx context.Context, pool *pgxpool.Pool, messageIDs []string) (map[string][]*models.Attachment, error) {
	if len(messageIDs) == 0 {
		return make(map[string][]*models.Attachment), nil
	}

	rows, err := pool.Query(ctx, `
		SELECT id, message_id, filename, mime_type, size_bytes, is_inline, content_id
		FROM attachments
		WHERE message_id = ANY($1)
		ORDER BY message_id
	`, messageIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	attachmentsMap := make(map[string][]*models.Attachment)
	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.Filename,
			&att.MimeType,
			&att.SizeBytes,
			&att.IsInline,
			&att.ContentID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachmentsMap[att.MessageID] = append(attachmentsMap[att.MessageID], &att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachmentsMap, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
