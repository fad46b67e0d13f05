// Package config defines the broker configuration, its validation rules,
// and a thread-safe wrapper for components that watch for updates.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Acceptor transport kinds
const (
	AcceptorTCP       = "tcp"
	AcceptorWebSocket = "ws"
)

// Address-full policy names accepted in configuration
const (
	FullPolicyPage  = "page"
	FullPolicyDrop  = "drop"
	FullPolicyBlock = "block"
)

// Config is the complete broker configuration.
type Config struct {
	Version   string                     `json:"version"`
	Broker    BrokerConfig               `json:"broker"`
	Journal   JournalConfig              `json:"journal"`
	Acceptors []AcceptorConfig           `json:"acceptors"`
	Metrics   MetricsConfig              `json:"metrics"`
	Addresses map[string]AddressSettings `json:"addresses"` // keyed by match pattern
}

// BrokerConfig carries broker identity.
type BrokerConfig struct {
	Name string `json:"name"`
}

// JournalConfig configures the sequential file factory.
type JournalConfig struct {
	Directory           string `json:"directory"`
	FilePrefix          string `json:"file_prefix"`
	FileExtension       string `json:"file_extension"`
	BufferSize          int    `json:"buffer_size"`
	BufferTimeoutMillis int    `json:"buffer_timeout_millis"`
	LogRates            bool   `json:"log_rates"`
}

// BufferTimeout returns the flush timeout as a duration.
func (jc JournalConfig) BufferTimeout() time.Duration {
	return time.Duration(jc.BufferTimeoutMillis) * time.Millisecond
}

// AcceptorConfig configures one client-facing listener.
type AcceptorConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // tcp or ws
	Address string `json:"address"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Path    string `json:"path"`
}

// AddressSettings is the per-pattern address configuration. Nil fields are
// unset and inherit from less specific patterns.
type AddressSettings struct {
	MaxSizeBytes          *int64  `json:"max_size_bytes,omitempty"`
	MaxDeliveryAttempts   *int    `json:"max_delivery_attempts,omitempty"`
	RedeliveryDelayMillis *int64  `json:"redelivery_delay_millis,omitempty"`
	ExpiryAddress         *string `json:"expiry_address,omitempty"`
	DeadLetterAddress     *string `json:"dead_letter_address,omitempty"`
	FullPolicy            *string `json:"full_policy,omitempty"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Broker:  BrokerConfig{Name: "brokerkit"},
		Journal: JournalConfig{
			Directory:           "data/journal",
			FilePrefix:          "journal",
			FileExtension:       "dat",
			BufferSize:          490 * 1024,
			BufferTimeoutMillis: 4,
		},
		Acceptors: []AcceptorConfig{
			{Name: "stomp", Type: AcceptorTCP, Address: ":61613"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}

// Load reads and validates a JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Broker.Name == "" {
		return fmt.Errorf("broker name must not be empty")
	}

	if c.Journal.Directory == "" {
		return fmt.Errorf("journal directory must not be empty")
	}
	if c.Journal.FileExtension == "" {
		return fmt.Errorf("journal file extension must not be empty")
	}
	if c.Journal.BufferSize < 0 {
		return fmt.Errorf("journal buffer size must not be negative")
	}
	if c.Journal.BufferTimeoutMillis < 0 {
		return fmt.Errorf("journal buffer timeout must not be negative")
	}
	if c.Journal.BufferSize > 0 && c.Journal.BufferTimeoutMillis == 0 {
		return fmt.Errorf("journal buffering requires a flush timeout")
	}

	names := make(map[string]struct{}, len(c.Acceptors))
	for i, acceptor := range c.Acceptors {
		if acceptor.Name == "" {
			return fmt.Errorf("acceptor %d: name must not be empty", i)
		}
		if _, dup := names[acceptor.Name]; dup {
			return fmt.Errorf("acceptor %q: duplicate name", acceptor.Name)
		}
		names[acceptor.Name] = struct{}{}

		switch acceptor.Type {
		case AcceptorTCP, AcceptorWebSocket:
		default:
			return fmt.Errorf("acceptor %q: unknown type %q", acceptor.Name, acceptor.Type)
		}
		if acceptor.Address == "" {
			return fmt.Errorf("acceptor %q: address must not be empty", acceptor.Name)
		}
	}

	for pattern, settings := range c.Addresses {
		if pattern == "" {
			return fmt.Errorf("address settings: empty match pattern")
		}
		if settings.FullPolicy != nil {
			switch *settings.FullPolicy {
			case FullPolicyPage, FullPolicyDrop, FullPolicyBlock:
			default:
				return fmt.Errorf("address settings %q: unknown full policy %q", pattern, *settings.FullPolicy)
			}
		}
		if settings.MaxDeliveryAttempts != nil && *settings.MaxDeliveryAttempts < 0 {
			return fmt.Errorf("address settings %q: max delivery attempts must not be negative", pattern)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address must not be empty when metrics are enabled")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return &Config{}
	}
	return clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
