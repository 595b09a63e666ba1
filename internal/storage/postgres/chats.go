package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/domain/chat"
)

// --- ChatStore --------------------------------------------------------------

func (s *Store) CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error) {
	stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chats (`+chatColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, c.ID, string(c.Type), c.Name, c.CreatorID, c.LastMessageID, c.IsActive, c.CreatedAt, c.UpdatedAt); err != nil {
			return mapError(err)
		}
		for i, p := range c.Participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_participants (chat_id, user_id, position, unread_count, joined_at)
				VALUES ($1, $2, $3, $4, $5)
			`, c.ID, p, i, c.UnreadCounts[p], c.CreatedAt); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return s.GetChat(ctx, c.ID)
}

func (s *Store) participants(ctx context.Context, chatIDs ...string) (map[string][]participantRow, error) {
	var rows []participantRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT chat_id, user_id, unread_count
		FROM chat_participants
		WHERE chat_id = ANY($1)
		ORDER BY chat_id, position
	`, pq.Array(chatIDs)); err != nil {
		return nil, err
	}
	out := make(map[string][]participantRow, len(chatIDs))
	for _, r := range rows {
		out[r.ChatID] = append(out[r.ChatID], r)
	}
	return out, nil
}

func (s *Store) hydrateChats(ctx context.Context, rows []chatRow) ([]chat.Chat, error) {
	if len(rows) == 0 {
		return []chat.Chat{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	parts, err := s.participants(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Chat, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain(parts[r.ID])
	}
	return out, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (chat.Chat, error) {
	var row chatRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id); err != nil {
		return chat.Chat{}, mapError(err)
	}
	chats, err := s.hydrateChats(ctx, []chatRow{row})
	if err != nil {
		return chat.Chat{}, err
	}
	return chats[0], nil
}

func (s *Store) FindDirectChat(ctx context.Context, a, b string) (chat.Chat, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `
		SELECT c.id
		FROM chats c
		WHERE c.type = 'DIRECT'
			AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.chat_id = c.id AND p.user_id = $1)
			AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.chat_id = c.id AND p.user_id = $2)
			AND (SELECT COUNT(*) FROM chat_participants p WHERE p.chat_id = c.id) = 2
		ORDER BY c.created_at
		LIMIT 1
	`, a, b)
	if err != nil {
		return chat.Chat{}, mapError(err)
	}
	return s.GetChat(ctx, id)
}

func (s *Store) ListChats(ctx context.Context, userID string, page domain.Page) ([]chat.Chat, error) {
	page = page.Clamp()
	var rows []chatRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.type, c.name, c.creator_id, c.last_message_id, c.is_active, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	return s.hydrateChats(ctx, rows)
}

func (s *Store) UpdateChat(ctx context.Context, c chat.Chat) (chat.Chat, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET name = $2, is_active = $3, last_message_id = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Name, c.IsActive, c.LastMessageID, c.UpdatedAt)
	if err != nil {
		return chat.Chat{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return chat.Chat{}, err
	}
	return s.GetChat(ctx, c.ID)
}

func (s *Store) IncrementUnread(ctx context.Context, chatID, senderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_participants SET unread_count = unread_count + 1
		WHERE chat_id = $1 AND user_id <> $2
	`, chatID, senderID)
	return err
}

func (s *Store) ResetUnread(ctx context.Context, chatID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_participants SET unread_count = 0
		WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID)
	return err
}

func (s *Store) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID)
	return err
}

// --- MessageStore -----------------------------------------------------------

func insertReads(ctx context.Context, ex sqlx.ExecerContext, messageID string, reads []chat.Read) error {
	for _, r := range reads {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, messageID, r.UserID, r.ReadAt); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	stampNew(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES (:id, :chat_id, :sender_id, :content, :type, :file_url, :reply_to_id, :is_deleted, :deleted_at, :created_at, :updated_at)
		`, newMessageRow(m)); err != nil {
			return mapError(err)
		}
		return insertReads(ctx, tx, m.ID, m.ReadBy)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) reads(ctx context.Context, messageIDs ...string) (map[string][]readRow, error) {
	var rows []readRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT message_id, user_id, read_at
		FROM message_reads
		WHERE message_id = ANY($1)
		ORDER BY read_at, user_id
	`, pq.Array(messageIDs)); err != nil {
		return nil, err
	}
	out := make(map[string][]readRow, len(messageIDs))
	for _, r := range rows {
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out, nil
}

func (s *Store) hydrateMessages(ctx context.Context, rows []messageRow) ([]chat.Message, error) {
	if len(rows) == 0 {
		return []chat.Message{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	reads, err := s.reads(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain(reads[r.ID])
	}
	return out, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	var row messageRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id); err != nil {
		return chat.Message{}, mapError(err)
	}
	msgs, err := s.hydrateMessages(ctx, []messageRow{row})
	if err != nil {
		return chat.Message{}, err
	}
	return msgs[0], nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string, page domain.Page) ([]chat.Message, error) {
	page = page.Clamp()
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, chatID, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	return s.hydrateMessages(ctx, rows)
}

func (s *Store) UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE messages
			SET content = :content, file_url = :file_url, is_deleted = :is_deleted,
				deleted_at = :deleted_at, updated_at = :updated_at
			WHERE id = :id
		`, newMessageRow(m))
		if err != nil {
			return mapError(err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		return insertReads(ctx, tx, m.ID, m.ReadBy)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return s.GetMessage(ctx, m.ID)
}

func (s *Store) MarkChatRead(ctx context.Context, chatID, userID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT id, $2, $3 FROM messages WHERE chat_id = $1
		ON CONFLICT DO NOTHING
	`, chatID, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
