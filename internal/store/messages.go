package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const activeUserCutoff = 5 * time.Minute

// MessagesByChannel lists a channel's messages, oldest first.
func (s *Store) MessagesByChannel(ctx context.Context, channelID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, profile_id, channel_id, created FROM messages
		 WHERE channel_id = ? ORDER BY created ASC, rowid ASC`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Content, &m.ProfileID, &m.ChannelID, &m.Created); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateMessage persists a message and touches the author's presence.
// The caller publishes the returned message to the hub once this commits.
func (s *Store) CreateMessage(ctx context.Context, channelID, profileID, content string) (Message, error) {
	exists, err := s.channelExists(ctx, channelID)
	if err != nil {
		return Message{}, err
	}
	if !exists {
		return Message{}, ErrChannelNotFound
	}

	m := Message{
		ID:        "msg_" + uuid.NewString(),
		Content:   content,
		ProfileID: profileID,
		ChannelID: channelID,
		Created:   nowRFC3339(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, content, profile_id, channel_id, created) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Content, m.ProfileID, m.ChannelID, m.Created)
	if err != nil {
		return Message{}, err
	}

	s.TouchActive(ctx, profileID)
	return m, nil
}

// AddReaction records a reaction on a message. A repeated emoji-only
// reaction by the same user toggles the existing one off instead; the
// returned reaction then carries Removed so subscribers drop it.
func (s *Store) AddReaction(
	ctx context.Context,
	messageID, username, gifURL, gifID, emoji string,
) (Reaction, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE id = ?`, messageID).Scan(&exists)
	if err != nil {
		return Reaction{}, err
	}
	if exists == 0 {
		return Reaction{}, ErrMessageNotFound
	}

	if emoji != "" && gifURL == "" {
		var existingID string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM reactions WHERE message_id = ? AND username = ? AND emoji = ?`,
			messageID, username, emoji).Scan(&existingID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Reaction{}, err
		}
		if err == nil {
			if _, err := s.db.ExecContext(ctx,
				`DELETE FROM reactions WHERE id = ?`, existingID); err != nil {
				return Reaction{}, err
			}
			return Reaction{
				ID:        existingID,
				MessageID: messageID,
				Username:  username,
				Emoji:     emoji,
				Removed:   true,
			}, nil
		}
	}

	r := Reaction{
		ID:        "r_" + uuid.NewString(),
		MessageID: messageID,
		Username:  username,
		GifURL:    gifURL,
		GifID:     gifID,
		Emoji:     emoji,
		Created:   nowRFC3339(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reactions (id, message_id, username, gif_url, gif_id, emoji, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MessageID, r.Username, r.GifURL, r.GifID, r.Emoji, r.Created)
	if err != nil {
		return Reaction{}, err
	}

	return r, nil
}

// ReactionsForMessages loads reactions for a set of messages, keyed by
// message id.
func (s *Store) ReactionsForMessages(ctx context.Context, messageIDs []string) (map[string][]Reaction, error) {
	result := make(map[string][]Reaction)
	if len(messageIDs) == 0 {
		return result, nil
	}

	placeholders := make([]byte, 0, 2*len(messageIDs))
	args := make([]any, 0, len(messageIDs))
	for i, id := range messageIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, username, gif_url, gif_id, emoji, created FROM reactions
		 WHERE message_id IN (`+string(placeholders)+`) ORDER BY created ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.ID, &r.MessageID, &r.Username, &r.GifURL, &r.GifID, &r.Emoji, &r.Created); err != nil {
			return nil, err
		}
		result[r.MessageID] = append(result[r.MessageID], r)
	}
	return result, rows.Err()
}

// TouchActive records that a user was just active. Failures are logged,
// not surfaced; presence is advisory.
func (s *Store) TouchActive(ctx context.Context, profileID string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_users (profile_id, last_seen) VALUES (?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET last_seen = excluded.last_seen`,
		profileID, time.Now().UnixMilli())
	if err != nil {
		s.logger.Warnf("failed to touch active user %s: %v", profileID, err)
	}
}

// ActiveUsers prunes stale presence rows and lists users active within
// the cutoff.
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	cutoff := time.Now().Add(-activeUserCutoff).UnixMilli()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM active_users WHERE last_seen <= ?`, cutoff); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT profile_id FROM active_users ORDER BY profile_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
