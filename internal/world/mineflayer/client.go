// Package mineflayer talks to the external bot process that actually lives
// inside the game world. The bot exposes a small HTTP API; this client adapts
// it to the world.Agent boundary and polls its chat feed for inbound lines.
package mineflayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

const (
	defaultChatPoll    = 1 * time.Second
	defaultHTTPTimeout = 10 * time.Second
)

// Client is an HTTP adapter to the bot process
type Client struct {
	baseURL  string
	http     *http.Client
	chatPoll time.Duration

	mu       sync.Mutex
	handlers map[int]func(username, message string)
	nextID   int
	lastSeq  int64
	pollStop chan struct{}
}

// NewClient creates a client for the bot at baseURL. A pollSeconds of 0
// selects the default chat poll interval.
func NewClient(baseURL string, pollSeconds int) *Client {
	poll := defaultChatPoll
	if pollSeconds > 0 {
		poll = time.Duration(pollSeconds) * time.Second
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		chatPoll: poll,
		handlers: make(map[int]func(username, message string)),
	}
}

// GetInventory returns a snapshot of the bot's inventory. A failed request
// returns an empty snapshot; the caller cannot act on stale data anyway.
func (c *Client) GetInventory() []world.ItemStack {
	var resp struct {
		Items []world.ItemStack `json:"items"`
	}
	if err := c.getJSON("/inventory", &resp); err != nil {
		logger.Warning("Failed to read agent inventory", "error", err)
		return nil
	}
	return resp.Items
}

// Say sends a plain chat message through the bot
func (c *Client) Say(text string) error {
	return c.postJSON("/chat", map[string]string{"text": text}, nil)
}

// RunCommand runs a raw server command and waits up to timeout for output
func (c *Client) RunCommand(cmd string, timeout time.Duration) (world.CommandResult, error) {
	var result world.CommandResult
	body := map[string]any{"command": cmd, "timeoutMs": timeout.Milliseconds()}
	if err := c.postJSON("/command", body, &result); err != nil {
		return world.CommandResult{}, err
	}
	return result, nil
}

// GiveItem grants count of itemID to the named player
func (c *Client) GiveItem(player, itemID string, count int, enchants []world.Enchant) (world.GiveResult, error) {
	var result world.GiveResult
	body := map[string]any{
		"player":   player,
		"itemId":   itemID,
		"count":    count,
		"enchants": enchants,
	}
	if err := c.postJSON("/give", body, &result); err != nil {
		return world.GiveResult{}, err
	}
	return result, nil
}

// GetStatus returns the bot's health and food levels
func (c *Client) GetStatus() world.Status {
	var status world.Status
	if err := c.getJSON("/status", &status); err != nil {
		logger.Warning("Failed to read agent status", "error", err)
		return world.Status{}
	}
	return status
}

// GetPosition returns the bot's position; false when not spawned
func (c *Client) GetPosition() (world.Position, bool) {
	var resp struct {
		world.Position
		Spawned bool `json:"spawned"`
	}
	if err := c.getJSON("/position", &resp); err != nil {
		return world.Position{}, false
	}
	return resp.Position, resp.Spawned
}

// NearbyPlayers returns the usernames currently visible to the bot
func (c *Client) NearbyPlayers() []string {
	var resp struct {
		Players []string `json:"players"`
	}
	if err := c.getJSON("/players", &resp); err != nil {
		return nil
	}
	return resp.Players
}

// OnChat registers a handler for inbound chat lines and starts the poll loop
// on first registration. The returned stop function removes the handler; the
// loop ends when the last handler is removed.
func (c *Client) OnChat(fn func(username, message string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.handlers[id] = fn

	if c.pollStop == nil {
		c.pollStop = make(chan struct{})
		go c.pollChat(c.pollStop)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
		if len(c.handlers) == 0 && c.pollStop != nil {
			close(c.pollStop)
			c.pollStop = nil
		}
	}
}

// pollChat repeatedly drains the bot's chat feed and fans lines out to the
// registered handlers
func (c *Client) pollChat(stop chan struct{}) {
	ticker := time.NewTicker(c.chatPoll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.drainChat()
		}
	}
}

func (c *Client) drainChat() {
	c.mu.Lock()
	since := c.lastSeq
	c.mu.Unlock()

	var resp struct {
		Messages []world.ChatMessage `json:"messages"`
	}
	if err := c.getJSON(fmt.Sprintf("/chat?since=%d", since), &resp); err != nil {
		logger.Warning("Failed to poll agent chat", "error", err)
		return
	}
	if len(resp.Messages) == 0 {
		return
	}

	c.mu.Lock()
	for _, m := range resp.Messages {
		if m.Seq > c.lastSeq {
			c.lastSeq = m.Seq
		}
	}
	handlers := make([]func(string, string), 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, m := range resp.Messages {
		for _, fn := range handlers {
			fn(m.Username, m.Message)
		}
	}
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent returned status %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode agent request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent returned status %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
