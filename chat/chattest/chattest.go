// Package chattest provides a recording in-memory chat.Client for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/pulsebot/pulsecheck/chat"
)

// Message is one recorded outbound message.
type Message struct {
	ChannelID string
	UserID    string // set for ephemeral messages
	Text      string
}

// FormOpen is one recorded OpenForm call.
type FormOpen struct {
	TriggerID string
	SessionID string
}

// Client records every outbound call and serves membership from fixed
// maps. The zero value is usable.
type Client struct {
	mu sync.Mutex

	Groups   map[string][]string
	Channels map[string][]string

	// Err, when set, is returned by every outbound send.
	Err error

	messages   []Message
	ephemerals []Message
	forms      []FormOpen
}

var _ chat.Client = (*Client)(nil)

func (c *Client) PostMessage(_ context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.messages = append(c.messages, Message{ChannelID: channelID, Text: text})
	return nil
}

func (c *Client) PostEphemeral(_ context.Context, channelID, userID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.ephemerals = append(c.ephemerals, Message{ChannelID: channelID, UserID: userID, Text: text})
	return nil
}

func (c *Client) OpenForm(_ context.Context, triggerID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.forms = append(c.forms, FormOpen{TriggerID: triggerID, SessionID: sessionID})
	return nil
}

func (c *Client) GroupMembers(_ context.Context, groupID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members, ok := c.Groups[groupID]
	if !ok {
		return nil, chat.ErrGroupNotFound
	}
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (c *Client) ChannelMembers(_ context.Context, channelID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := c.Channels[channelID]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

// Messages returns a copy of recorded PostMessage calls.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Ephemerals returns a copy of recorded PostEphemeral calls.
func (c *Client) Ephemerals() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.ephemerals))
	copy(out, c.ephemerals)
	return out
}

// Forms returns a copy of recorded OpenForm calls.
func (c *Client) Forms() []FormOpen {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FormOpen, len(c.forms))
	copy(out, c.forms)
	return out
}
