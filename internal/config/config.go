// Package config loads relay configuration from a TOML file and
// RELAY_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all relay configuration.
type Config struct {
	App       AppConfig
	JWT       JWTConfig
	Store     StoreConfig
	Handshake HandshakeConfig
	Socket    SocketConfig
	Log       LogConfig
}

// AppConfig holds daemon-level settings.
type AppConfig struct {
	Env  string // dev, production
	Addr string // listen address, e.g. ":8080"
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// StoreConfig holds the identity store location.
type StoreConfig struct {
	Path string // bbolt database file
}

// HandshakeConfig bounds the authentication sequence at connect time.
type HandshakeConfig struct {
	Timeout time.Duration
}

// SocketConfig holds per-connection tuning.
type SocketConfig struct {
	SendBuffer   int           // outbound frames buffered per client
	WriteTimeout time.Duration // per-frame write deadline
	PingInterval time.Duration
	MessageRate  float64 // inbound chat messages per second
	MessageBurst int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string // debug, info, warn, error
}

// Load reads configuration with the following priority (highest first):
// environment variables with the RELAY_ prefix (e.g. RELAY_JWT_SECRET),
// config.toml in the working directory, built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Addr: v.GetString("app.addr"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Handshake: HandshakeConfig{
			Timeout: v.GetDuration("handshake.timeout"),
		},
		Socket: SocketConfig{
			SendBuffer:   v.GetInt("socket.send_buffer"),
			WriteTimeout: v.GetDuration("socket.write_timeout"),
			PingInterval: v.GetDuration("socket.ping_interval"),
			MessageRate:  v.GetFloat64("socket.message_rate"),
			MessageBurst: v.GetInt("socket.message_burst"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "tesloshop-relay")
	v.SetDefault("jwt.expiration", 2*time.Hour)
	v.SetDefault("store.path", "relay.db")
	v.SetDefault("handshake.timeout", 10*time.Second)
	v.SetDefault("socket.send_buffer", 64)
	v.SetDefault("socket.write_timeout", 10*time.Second)
	v.SetDefault("socket.ping_interval", 30*time.Second)
	v.SetDefault("socket.message_rate", 10)
	v.SetDefault("socket.message_burst", 20)
	v.SetDefault("log.level", "info")
}

// Validate checks settings that would otherwise fail at an awkward time.
func (c *Config) Validate() error {
	if c.App.Env == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if c.Handshake.Timeout <= 0 {
		return fmt.Errorf("handshake.timeout must be positive, got %s", c.Handshake.Timeout)
	}
	if c.Socket.SendBuffer <= 0 {
		return fmt.Errorf("socket.send_buffer must be positive, got %d", c.Socket.SendBuffer)
	}
	if c.Socket.WriteTimeout <= 0 {
		return fmt.Errorf("socket.write_timeout must be positive, got %s", c.Socket.WriteTimeout)
	}
	if c.Socket.MessageRate <= 0 {
		return fmt.Errorf("socket.message_rate must be positive, got %v", c.Socket.MessageRate)
	}
	return nil
}

// IsDev reports whether the relay runs in development mode.
func (c *Config) IsDev() bool {
	return c.App.Env != "production"
}
