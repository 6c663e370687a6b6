// config/display.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DisplayConfig là cấu hình của màn hình sảnh (cmd/display).
type DisplayConfig struct {
	ServerURL string `mapstructure:"serverURL"`
	Token     string `mapstructure:"token"`
	DeviceID  string `mapstructure:"deviceID"`
	// StateFile lưu tập thông báo đã đọc của thiết bị.
	StateFile string `mapstructure:"stateFile"`
	// LogFile rỗng thì bỏ log; màn hình dùng stdout.
	LogFile  string `mapstructure:"logFile"`
	LogLevel string `mapstructure:"logLevel"`
}

// LoadDisplayConfig đọc display.yaml trong path rồi ghi đè bằng biến môi trường DISPLAY_*.
func LoadDisplayConfig(path string) (cfg DisplayConfig, err error) {
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("display")
	v.SetConfigType("yaml")
	v.SetDefault("serverURL", "http://localhost:8080")
	v.SetDefault("deviceID", "lobby-display")
	v.SetDefault("stateFile", filepath.Join(".safe-pickup", "read-notifications.json"))
	v.SetDefault("logLevel", "info")

	v.BindEnv("serverURL", "DISPLAY_SERVER_URL")
	v.BindEnv("token", "DISPLAY_TOKEN")
	v.BindEnv("deviceID", "DISPLAY_DEVICE_ID")
	v.BindEnv("stateFile", "DISPLAY_STATE_FILE")
	v.BindEnv("logFile", "DISPLAY_LOG_FILE")
	v.BindEnv("logLevel", "DISPLAY_LOG_LEVEL")

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

func (c DisplayConfig) Validate() error {
	if c.Token == "" {
		return errors.New("display token is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid serverURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("serverURL must be http or https, got %q", c.ServerURL)
	}
	if c.StateFile == "" {
		return errors.New("stateFile is required")
	}
	return nil
}

// WebSocketURL derives the real-time endpoint from ServerURL.
func (c DisplayConfig) WebSocketURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws"
	u.RawQuery = ""
	return u.String()
}
