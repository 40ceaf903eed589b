package platform

import "context"

// Channel identifies a provisioned chat channel.
type Channel struct {
	ID   string
	Name string
}

// Message identifies a message posted to a channel.
type Message struct {
	ID        string
	ChannelID string
}

// Gateway is the surface the shop core needs from the chat frontend.
// The real adapter lives with the frontend deployment; the core only
// ever sees this interface.
type Gateway interface {
	// CreateChannel provisions a channel under the given category,
	// visible to the named user.
	CreateChannel(ctx context.Context, categoryRef, name, userID string) (Channel, error)
	// ArchiveChannel moves a channel under the archive category and
	// revokes the user's write access.
	ArchiveChannel(ctx context.Context, channelID, archiveCategoryRef string) error
	// DeleteChannel removes a channel outright.
	DeleteChannel(ctx context.Context, channelID string) error
	// SendMessage posts to a channel and returns the message handle.
	SendMessage(ctx context.Context, channelID, body string) (Message, error)
	// DeleteMessage removes a previously posted message.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// GrantRole assigns a platform role to a user.
	GrantRole(ctx context.Context, userID, roleRef string) error
	// RenameChannel updates a channel's display name.
	RenameChannel(ctx context.Context, channelID, name string) error
}
