// Package config loads the bridge server configuration from YAML with
// environment variable overrides.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BridgeConfig holds server-wide configuration settings.
type BridgeConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Engine    EngineConfig    `yaml:"engine"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Persona   PersonaConfig   `yaml:"persona"`
	Quests    QuestsConfig    `yaml:"quests"`
	Agent     AgentConfig     `yaml:"agent"`
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr"`
}

// StoreConfig selects and configures the quest store backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string (postgres backend only).
	DSN string `yaml:"dsn"`
}

// EngineConfig holds quest engine tuning.
type EngineConfig struct {
	// PollIntervalSeconds is how often COLLECT watchers sample the inventory.
	// 0 selects the engine default.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// WebSocketConfig holds event push settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect to the event
	// stream. Empty list enforces same-origin policy. "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PersonaConfig holds the DM persona defaults.
type PersonaConfig struct {
	// Name is the starting persona (wise_cat, sarcastic, heroic).
	Name string `yaml:"name"`

	// Temperature is the starting sampling temperature.
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig points at the external world agent process.
type AgentConfig struct {
	// BaseURL is the agent's HTTP endpoint. Empty disables world actions.
	BaseURL string `yaml:"base_url"`

	// PollIntervalSeconds is how often inbound chat is polled. 0 selects
	// the agent client default.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// QuestsConfig points at the blueprint template library.
type QuestsConfig struct {
	// TemplatesPath is a YAML file or directory of blueprint templates.
	// Empty means only the built-in default blueprint is available.
	TemplatesPath string `yaml:"templates_path"`
}

// DefaultConfig returns a BridgeConfig with sensible defaults.
func DefaultConfig() *BridgeConfig {
	return &BridgeConfig{
		HTTP:  HTTPConfig{ListenAddr: ":8080"},
		Store: StoreConfig{Backend: "memory", Path: "data/questbridge.db"},
		Engine: EngineConfig{
			PollIntervalSeconds: 2,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
		},
		Persona: PersonaConfig{Name: "wise_cat", Temperature: 0.5},
	}
}

// LoadConfig loads configuration from a YAML file and applies environment
// variable overrides. If the file doesn't exist, defaults are used.
func LoadConfig(path string) (*BridgeConfig, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return config, err
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return DefaultConfig(), err
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(config *BridgeConfig) {
	if addr := os.Getenv("BRIDGE_LISTEN_ADDR"); addr != "" {
		config.HTTP.ListenAddr = addr
	}
	if backend := os.Getenv("BRIDGE_STORE_BACKEND"); backend != "" {
		config.Store.Backend = backend
	}
	if path := os.Getenv("BRIDGE_STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if dsn := os.Getenv("BRIDGE_STORE_DSN"); dsn != "" {
		config.Store.DSN = dsn
	}
	if poll := os.Getenv("BRIDGE_POLL_INTERVAL_SECONDS"); poll != "" {
		if n, err := strconv.Atoi(poll); err == nil && n > 0 {
			config.Engine.PollIntervalSeconds = n
		}
	}
	if templates := os.Getenv("BRIDGE_TEMPLATES_PATH"); templates != "" {
		config.Quests.TemplatesPath = templates
	}
	if agent := os.Getenv("BRIDGE_AGENT_URL"); agent != "" {
		config.Agent.BaseURL = agent
	}
}

// IsOriginAllowed checks if the given origin may connect to the event stream.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	// If no origins configured, enforce same-origin policy
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		// Wildcard allows all origins
		if allowed == "*" {
			return true
		}
		if allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means same-origin (e.g., non-browser client)
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
