// Package chat defines the boundary contract to the chat platform. The
// lifecycle core only needs to send messages, open the feedback form,
// and resolve group or channel membership; everything behind those calls
// belongs to the platform adapter.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrGroupNotFound is returned by GroupMembers for an unknown group
	// handle.
	ErrGroupNotFound = errors.New("user group not found")

	// ErrNotPermitted is returned when the platform rejects the call for
	// missing permissions.
	ErrNotPermitted = errors.New("chat operation not permitted")
)

// Client is the narrow surface the feedback service talks to.
// Implementations are expected to be safe for concurrent use.
type Client interface {
	// PostMessage sends text to a channel or a user's DM.
	PostMessage(ctx context.Context, channelID, text string) error

	// PostEphemeral sends text visible only to user inside channelID.
	PostEphemeral(ctx context.Context, channelID, userID, text string) error

	// OpenForm opens the feedback submission form for the interaction
	// identified by triggerID, bound to sessionID.
	OpenForm(ctx context.Context, triggerID, sessionID string) error

	// GroupMembers resolves a user group to its member ids.
	GroupMembers(ctx context.Context, groupID string) ([]string, error)

	// ChannelMembers resolves a channel to its active human member ids.
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)
}
