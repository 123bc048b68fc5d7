package store

import "errors"

var (
	ErrInvalidUsername    = errors.New("username must be 3-20 characters (letters, numbers, _, -)")
	ErrInvalidPassword    = errors.New("password must be between 8 and 100 characters")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPendingApproval    = errors.New("account pending admin approval")
	ErrRateLimited        = errors.New("too many attempts, try again later")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidChannelName = errors.New("invalid channel name")
	ErrChannelTaken       = errors.New("channel name is already taken")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrMessageNotFound    = errors.New("message not found")
)

// User is a registered account. The first registered user becomes an
// approved admin; everyone after starts pending.
type User struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"-"`
	Role         string `json:"role"`   // admin, member
	Status       string `json:"status"` // pending, approved
	Created      string `json:"created"`
}

// Channel is a chat channel. Private channels are visible only to their
// members and admins.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"` // public, private
	Created     string `json:"created"`
}

// Message is one persisted chat message.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	ProfileID string `json:"profile_id"`
	ChannelID string `json:"channel_id"`
	Created   string `json:"created"`
}

// Reaction is an emoji or GIF reaction on a message. Removed marks a
// toggle-off so live clients can drop it from view.
type Reaction struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Username  string `json:"username"`
	GifURL    string `json:"gif_url"`
	GifID     string `json:"gif_id"`
	Emoji     string `json:"emoji"`
	Created   string `json:"created"`
	Removed   bool   `json:"removed,omitempty"`
}

// TypingNotice is the payload of a typing event. Nothing is persisted
// for it.
type TypingNotice struct {
	ChannelID string `json:"channel_id"`
	ProfileID string `json:"profile_id"`
}
