package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	channelSlugStrip = regexp.MustCompile(`[^a-z0-9-]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Channels lists every channel, oldest first.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	return s.listChannels(ctx,
		`SELECT id, name, description, visibility, created FROM channels
		 ORDER BY created ASC, name ASC`)
}

// ChannelsForUser lists the channels visible to a user: all of them for
// admins, public plus membership-granted private ones for members.
func (s *Store) ChannelsForUser(ctx context.Context, username, role string) ([]Channel, error) {
	if role == "admin" {
		return s.Channels(ctx)
	}

	return s.listChannels(ctx,
		`SELECT c.id, c.name, c.description, c.visibility, c.created FROM channels c
		 WHERE c.visibility = 'public'
		    OR EXISTS (SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.username = ?)
		 ORDER BY c.created ASC, c.name ASC`, username)
}

// CreateChannel creates a channel with a slugified unique name. A private
// channel gets the given member list.
func (s *Store) CreateChannel(
	ctx context.Context,
	name, description, visibility string,
	members []string,
) (Channel, error) {
	slug := channelSlugStrip.ReplaceAllString(
		whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-"), "")
	if slug == "" {
		return Channel{}, ErrInvalidChannelName
	}

	if visibility != "private" {
		visibility = "public"
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE name = ?`, slug).Scan(&exists); err != nil {
		return Channel{}, err
	}
	if exists > 0 {
		return Channel{}, ErrChannelTaken
	}

	ch := Channel{
		ID:          "ch_" + uuid.NewString(),
		Name:        slug,
		Description: description,
		Visibility:  visibility,
		Created:     nowRFC3339(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, name, description, visibility, created) VALUES (?, ?, ?, ?, ?)`,
		ch.ID, ch.Name, ch.Description, ch.Visibility, ch.Created)
	if err != nil {
		return Channel{}, err
	}

	if visibility == "private" && len(members) > 0 {
		if err := s.SetChannelMembers(ctx, ch.ID, members); err != nil {
			return Channel{}, err
		}
	}

	return ch, nil
}

// SetChannelMembers replaces a channel's member list.
func (s *Store) SetChannelMembers(ctx context.Context, channelID string, usernames []string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ?`, channelID); err != nil {
		return err
	}

	for _, u := range usernames {
		username := strings.ToLower(strings.TrimSpace(u))
		if username == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO channel_members (channel_id, username) VALUES (?, ?)`,
			channelID, username)
		if err != nil {
			return err
		}
	}

	return nil
}

// ChannelMembers lists a channel's member usernames.
func (s *Store) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM channel_members WHERE channel_id = ? ORDER BY username ASC`,
		channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		members = append(members, username)
	}
	return members, rows.Err()
}

// CanAccessChannel reports whether a user may read and post in a channel.
// Admins may access everything; members need the channel to be public or
// to be on its member list.
func (s *Store) CanAccessChannel(ctx context.Context, channelID, username, role string) (bool, error) {
	var visibility string
	err := s.db.QueryRowContext(ctx,
		`SELECT visibility FROM channels WHERE id = ?`, channelID).Scan(&visibility)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrChannelNotFound
	}
	if err != nil {
		return false, err
	}
	if role == "admin" || visibility == "public" {
		return true, nil
	}

	var member int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_members WHERE channel_id = ? AND username = ?`,
		channelID, username).Scan(&member)
	return member > 0, err
}

func (s *Store) channelExists(ctx context.Context, channelID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE id = ?`, channelID).Scan(&count)
	return count > 0, err
}

func (s *Store) listChannels(ctx context.Context, query string, args ...any) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Visibility, &ch.Created); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
