// Package client is a small websocket client for the hub, used by the
// hubcli command and handy for smoke-testing a running server.
package client

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chathub/pkg/protocol"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrRequestRejected = errors.New("request rejected")
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base ws:// or wss:// URL without the hub path.
	ServerURL string
	Tenant    string
	UserID    string
}

// EventFunc receives server-pushed events.
type EventFunc func(ev protocol.Event)

// Client is one hub connection bound to a tenant and user.
type Client struct {
	config  *Config
	conn    *websocket.Conn
	onEvent EventFunc

	sendChan  chan *protocol.Message
	results   chan protocol.Result
	stopChan  chan struct{}
	closeOnce sync.Once
}

// New creates a client instance.
func New(config *Config, onEvent EventFunc) *Client {
	return &Client{
		config:   config,
		onEvent:  onEvent,
		sendChan: make(chan *protocol.Message, 64),
		results:  make(chan protocol.Result, 16),
		stopChan: make(chan struct{}),
	}
}

// Start dials the server, registers the user id and starts the pumps.
// Returns the roster of reachable users from registration.
func (c *Client) Start() (string, error) {
	url := strings.TrimRight(c.config.ServerURL, "/") + "/hub/" + c.config.Tenant

	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(url, http.Header{})
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn

	go c.readPump()
	go c.writePump()

	roster, err := c.request(protocol.ActionAddUser, &protocol.AddUserPayload{UserID: c.config.UserID})
	if err != nil {
		c.Close()
		return "", err
	}
	return roster, nil
}

// Join adds this connection to a broadcast group.
func (c *Client) Join(group string) error {
	_, err := c.request(protocol.ActionAddToGroup, &protocol.AddToGroupPayload{GroupID: group})
	return err
}

// Online announces presence to group peers.
func (c *Client) Online() error {
	_, err := c.request(protocol.ActionOnline, struct{}{})
	return err
}

// SendPrivate sends a direct message to another user in the tenant.
func (c *Client) SendPrivate(to, message, messageID string) error {
	_, err := c.request(protocol.ActionSendPrivateMessage, &protocol.PrivateMessagePayload{
		From: c.config.UserID, To: to, Message: message, MessageID: messageID,
	})
	return err
}

// SendGroup sends a message to a broadcast group.
func (c *Client) SendGroup(group, message, messageID string) error {
	_, err := c.request(protocol.ActionSendGroupMessage, &protocol.GroupMessagePayload{
		From: c.config.UserID, Group: group, Message: message, MessageID: messageID,
	})
	return err
}

// SendAll broadcasts a message to every connection on the server.
func (c *Client) SendAll(message string) error {
	_, err := c.request(protocol.ActionSendAll, &protocol.SendAllPayload{Message: message})
	return err
}

// Delete propagates a message deletion notice.
func (c *Client) Delete(messageID, sourceID string, fromGroup bool) error {
	_, err := c.request(protocol.ActionDeleteMessage, &protocol.DeleteMessagePayload{
		MessageID: messageID, SourceID: sourceID, FromGroup: fromGroup,
	})
	return err
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		if c.conn != nil {
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
		}
	})
}

// request sends an action and waits for its acknowledgement. Replies come
// back in order on a single connection, so the next result is ours.
func (c *Client) request(action protocol.ActionType, payload any) (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}

	msg, err := protocol.NewMessage(action, payload)
	if err != nil {
		return "", err
	}

	select {
	case c.sendChan <- msg:
	case <-c.stopChan:
		return "", ErrNotConnected
	}

	select {
	case res := <-c.results:
		if !res.OK {
			return "", fmt.Errorf("%w: %s", ErrRequestRejected, res.Error)
		}
		return res.Roster, nil
	case <-c.stopChan:
		return "", ErrNotConnected
	case <-time.After(10 * time.Second):
		return "", fmt.Errorf("timed out waiting for %s acknowledgement", action)
	}
}

// inboundFrame covers both frame shapes the server writes: events with an
// event name and args, and per-message results.
type inboundFrame struct {
	Event  string `json:"event"`
	Args   []any  `json:"args"`
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Roster string `json:"roster"`
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		if frame.Event != "" {
			if c.onEvent != nil {
				c.onEvent(protocol.Event{Event: frame.Event, Args: frame.Args})
			}
			continue
		}

		select {
		case c.results <- protocol.Result{ID: frame.ID, OK: frame.OK, Error: frame.Error, Roster: frame.Roster}:
		default:
			// No request waiting; drop the stale acknowledgement.
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case msg := <-c.sendChan:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.Close()
				return
			}
		case <-c.stopChan:
			return
		}
	}
}
