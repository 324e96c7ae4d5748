package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidChannelConfig is returned for a nil or malformed channel config
var ErrInvalidChannelConfig = errors.New("channel config is invalid")

// Importance levels map onto notification urgency
const (
	ImportanceLow     = "low"
	ImportanceDefault = "default"
	ImportanceHigh    = "high"
)

// DefaultChannelID is used when no channel has been created
const DefaultChannelID = "ForegroundServiceChannel"

// ChannelConfig describes a notification channel
type ChannelConfig struct {
	ID          string `mapstructure:"id" validate:"required"`
	Name        string `mapstructure:"name" validate:"required"`
	Description string `mapstructure:"description"`
	Importance  string `mapstructure:"importance" validate:"omitempty,oneof=low default high"`
}

// Urgency returns the freedesktop urgency byte for the channel importance
func (c ChannelConfig) Urgency() byte {
	switch c.Importance {
	case ImportanceLow:
		return 0
	case ImportanceHigh:
		return 2
	default:
		return 1
	}
}

var validate = validator.New()

// ParseChannelConfig decodes a channel config map
func ParseChannelConfig(raw map[string]interface{}) (ChannelConfig, error) {
	if raw == nil {
		return ChannelConfig{}, ErrInvalidChannelConfig
	}

	var cfg ChannelConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return ChannelConfig{}, fmt.Errorf("%w: %v", ErrInvalidChannelConfig, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return ChannelConfig{}, fmt.Errorf("%w: %v", ErrInvalidChannelConfig, err)
	}
	if cfg.Importance == "" {
		cfg.Importance = ImportanceDefault
	}
	return cfg, nil
}

// Channels holds the notification channels created by the caller
type Channels struct {
	mu       sync.RWMutex
	channels map[string]ChannelConfig
}

// NewChannels creates a registry holding the default channel
func NewChannels() *Channels {
	return &Channels{
		channels: map[string]ChannelConfig{
			DefaultChannelID: {ID: DefaultChannelID, Name: "Recording", Importance: ImportanceLow},
		},
	}
}

// Create registers or replaces a channel
func (c *Channels) Create(cfg ChannelConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channels[cfg.ID] = cfg
	slog.Debug("Notification channel created", "id", cfg.ID, "name", cfg.Name, "importance", cfg.Importance)
}

// Get returns the channel with the given id, falling back to the default channel
func (c *Channels) Get(id string) ChannelConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cfg, ok := c.channels[id]; ok {
		return cfg
	}
	return c.channels[DefaultChannelID]
}
