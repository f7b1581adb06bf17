package mineflayer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/world"
)

// fakeBot mimics the bot process HTTP API
type fakeBot struct {
	mu       sync.Mutex
	messages []world.ChatMessage
	said     []string
	commands []string
}

func (b *fakeBot) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /inventory", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []world.ItemStack{{Name: "oak_planks", Count: 12}},
		})
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.said = append(b.said, body.Text)
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /command", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command string `json:"command"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.commands = append(b.commands, body.Command)
		b.mu.Unlock()
		json.NewEncoder(w).Encode(world.CommandResult{OK: true, Output: []string{"done"}})
	})
	mux.HandleFunc("POST /give", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Player string `json:"player"`
			ItemID string `json:"itemId"`
			Count  int    `json:"count"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(world.GiveResult{
			OK:      true,
			Command: fmt.Sprintf("/give %s %s %d", body.Player, body.ItemID, body.Count),
		})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(world.Status{Health: 17, Food: 20})
	})
	mux.HandleFunc("GET /position", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"x": 1.0, "y": 64.0, "z": -3.0, "spawned": true})
	})
	mux.HandleFunc("GET /players", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"players": []string{"Steve", "Alex"}})
	})
	mux.HandleFunc("GET /chat", func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		b.mu.Lock()
		out := make([]world.ChatMessage, 0)
		for _, m := range b.messages {
			if m.Seq > since {
				out = append(out, m)
			}
		}
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"messages": out})
	})

	return mux
}

func (b *fakeBot) pushChat(username, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, world.ChatMessage{
		Username: username,
		Message:  message,
		Seq:      int64(len(b.messages) + 1),
	})
}

func newTestClient(t *testing.T) (*Client, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	server := httptest.NewServer(bot.handler())
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 0)
	client.chatPoll = 20 * time.Millisecond
	return client, bot
}

func TestGetInventory(t *testing.T) {
	client, _ := newTestClient(t)

	items := client.GetInventory()
	if len(items) != 1 {
		t.Fatalf("Expected 1 stack, got %d", len(items))
	}
	if items[0].Name != "oak_planks" || items[0].Count != 12 {
		t.Errorf("Unexpected stack: %+v", items[0])
	}
}

func TestSayReachesBot(t *testing.T) {
	client, bot := newTestClient(t)

	if err := client.Say("bonjour"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.said) != 1 || bot.said[0] != "bonjour" {
		t.Errorf("Expected bot to say bonjour, got %v", bot.said)
	}
}

func TestRunCommand(t *testing.T) {
	client, bot := newTestClient(t)

	result, err := client.RunCommand("/time set day", 2*time.Second)
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if !result.OK {
		t.Error("Expected OK result")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.commands) != 1 || bot.commands[0] != "/time set day" {
		t.Errorf("Expected command to reach bot, got %v", bot.commands)
	}
}

func TestGiveItem(t *testing.T) {
	client, _ := newTestClient(t)

	result, err := client.GiveItem("Steve", "minecraft:emerald", 10, nil)
	if err != nil {
		t.Fatalf("GiveItem failed: %v", err)
	}
	if result.Command != "/give Steve minecraft:emerald 10" {
		t.Errorf("Unexpected give command: %s", result.Command)
	}
}

func TestStatusAndPosition(t *testing.T) {
	client, _ := newTestClient(t)

	status := client.GetStatus()
	if status.Health != 17 {
		t.Errorf("Expected health 17, got %v", status.Health)
	}

	pos, ok := client.GetPosition()
	if !ok {
		t.Fatal("Expected a position")
	}
	if pos.Y != 64 {
		t.Errorf("Expected y 64, got %v", pos.Y)
	}

	players := client.NearbyPlayers()
	if len(players) != 2 {
		t.Errorf("Expected 2 players, got %v", players)
	}
}

func TestOnChatDeliversNewLinesOnce(t *testing.T) {
	client, bot := newTestClient(t)

	var mu sync.Mutex
	var got []string
	stop := client.OnChat(func(username, message string) {
		mu.Lock()
		got = append(got, username+": "+message)
		mu.Unlock()
	})
	defer stop()

	bot.pushChat("Steve", "je veux une quête")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Allow a few more poll cycles; the line must not be delivered again
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("Expected exactly 1 delivery, got %d: %v", len(got), got)
	}
	if got[0] != "Steve: je veux une quête" {
		t.Errorf("Unexpected delivery: %s", got[0])
	}
}

func TestOnChatStopEndsPolling(t *testing.T) {
	client, bot := newTestClient(t)

	delivered := make(chan struct{}, 8)
	stop := client.OnChat(func(username, message string) {
		delivered <- struct{}{}
	})
	stop()

	bot.pushChat("Steve", "hello")
	select {
	case <-delivered:
		t.Error("Expected no delivery after stop")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDisconnectedAgent(t *testing.T) {
	agent := NewDisconnected()

	if err := agent.Say("hello"); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if _, err := agent.RunCommand("/time set day", time.Second); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if items := agent.GetInventory(); items != nil {
		t.Errorf("Expected empty inventory, got %v", items)
	}
	if _, ok := agent.GetPosition(); ok {
		t.Error("Expected no position")
	}
	stop := agent.OnChat(func(string, string) {})
	stop()
}
