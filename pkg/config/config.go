package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace string         `json:"workspace" env:"DMPILOT_WORKSPACE" validate:"required"`
	Log       LogConfig      `json:"log"`
	Channels  ChannelsConfig `json:"channels"`
	Responder ResponderConfig `json:"responder"`
	Learning  LearningConfig `json:"learning"`
	mu        sync.RWMutex
}

type LogConfig struct {
	Level    string `json:"level" env:"DMPILOT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	JSONFile string `json:"json_file" env:"DMPILOT_LOG_JSON_FILE"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"DMPILOT_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DMPILOT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ResponderConfig struct {
	AckRate  float64 `json:"ack_rate" env:"DMPILOT_RESPONDER_ACK_RATE" validate:"gte=0,lte=1"`
	MuseRate float64 `json:"muse_rate" env:"DMPILOT_RESPONDER_MUSE_RATE" validate:"gte=0,lte=1"`
	TypoRate float64 `json:"typo_rate" env:"DMPILOT_RESPONDER_TYPO_RATE" validate:"gte=0,lte=1"`
}

type LearningConfig struct {
	Schedule       string `json:"schedule" env:"DMPILOT_LEARNING_SCHEDULE" validate:"required"`
	MinOccurrences int    `json:"min_occurrences" env:"DMPILOT_LEARNING_MIN_OCCURRENCES" validate:"gte=1"`
	MaxCandidates  int    `json:"max_candidates" env:"DMPILOT_LEARNING_MAX_CANDIDATES" validate:"gte=1"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.dmpilot/workspace",
		Log: LogConfig{
			Level:    "info",
			JSONFile: "",
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Responder: ResponderConfig{
			AckRate:  0.4,
			MuseRate: 0.3,
			TypoRate: 0.05,
		},
		Learning: LearningConfig{
			Schedule:       "0 * * * *", // hourly
			MinOccurrences: 3,
			MaxCandidates:  10,
		},
	}
}

// LoadConfig reads the JSON config at path (missing file means defaults),
// applies DMPILOT_* env overrides, then validates the result. The learning
// schedule must be a valid cron expression.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if !gronx.New().IsValid(cfg.Learning.Schedule) {
		return nil, fmt.Errorf("validate config: learning.schedule %q is not a valid cron expression", cfg.Learning.Schedule)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

// DatabasePath is where the responder state database lives inside the
// workspace.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.WorkspacePath(), "state", "dmpilot.db")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
