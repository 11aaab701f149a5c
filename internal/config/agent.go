package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig configures the focusctl synchronization agent.
type AgentConfig struct {
	ServerURL        string        `mapstructure:"server_url"`
	APIKey           string        `mapstructure:"api_key"`
	StateDir         string        `mapstructure:"state_dir"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	SaveTimeout      time.Duration `mapstructure:"save_timeout"`
	DebounceFloor    time.Duration `mapstructure:"debounce_floor"`
	LogLevel         string        `mapstructure:"log_level"`
}

// AgentConfigName is the base name of the agent configuration file.
const AgentConfigName = "focusctl"

// NewAgentViper returns a viper instance with agent defaults and FOCUSCTL_*
// environment overrides registered. Callers may bind command-line flags to it
// before calling LoadAgent.
func NewAgentViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("api_key", "")
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("liveness_interval", 60*time.Second)
	v.SetDefault("save_timeout", 10*time.Second)
	v.SetDefault("debounce_floor", 5*time.Second)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("FOCUSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadAgent reads path, or focusctl.yaml from the working directory and the
// user config directory when path is empty, and validates the merged result.
// A missing default file is not an error.
func LoadAgent(v *viper.Viper, path string) (AgentConfig, error) {
	if v == nil {
		v = NewAgentViper()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AgentConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AgentConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return AgentConfig{}, fmt.Errorf("設定ファイルを読み込めません: %w", err)
		}
	}

	var cfg AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("設定値を解釈できません: %w", err)
	}
	cfg.ServerURL = strings.TrimSpace(cfg.ServerURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	missing := make([]string, 0, 2)
	if cfg.ServerURL == "" {
		missing = append(missing, "server_url")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if cfg.StateDir == "" {
		missing = append(missing, "state_dir")
	}
	if len(missing) > 0 {
		return AgentConfig{}, fmt.Errorf("必須の設定値がありません: %s", strings.Join(missing, ", "))
	}

	invalid := make([]string, 0, 2)
	if cfg.SyncInterval <= 0 {
		invalid = append(invalid, "sync_interval")
	}
	if cfg.LivenessInterval <= 0 {
		invalid = append(invalid, "liveness_interval")
	}
	if cfg.SaveTimeout <= 0 {
		invalid = append(invalid, "save_timeout")
	}
	if cfg.DebounceFloor < 0 {
		invalid = append(invalid, "debounce_floor")
	}
	if len(invalid) > 0 {
		return AgentConfig{}, fmt.Errorf("設定値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AgentConfigName)
	}
	return "." + AgentConfigName
}
