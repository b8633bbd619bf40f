package chatmio

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/spf13/viper"
)

// Config controls a Server.
type Config struct {
	// Addr is the TCP listen address, e.g. "127.0.0.1:8080".
	Addr string

	// ReusePort enables SO_REUSEPORT on the listening socket.
	ReusePort bool

	// AuthSecret is the HMAC key used by the Auth middleware. Auth is
	// disabled when empty.
	AuthSecret string

	// Logger receives server logs. Defaults to a silent logger so library
	// users opt in to output.
	Logger *log.Logger
}

// DefaultConfig returns a Config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		Addr:   "127.0.0.1:8080",
		Logger: log.New(io.Discard, "", 0),
	}
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if _, err := net.ResolveTCPAddr("tcp", c.Addr); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads configuration from chatmio.yaml in the working
// directory and from CHATMIO_-prefixed environment variables, falling
// back to the server's defaults. A missing config file is not an error.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("addr", "127.0.0.1:80")
	v.SetDefault("reuse_port", false)
	v.SetDefault("auth_secret", "")

	v.SetConfigName("chatmio")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHATMIO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	cfg := DefaultConfig()
	cfg.Addr = v.GetString("addr")
	cfg.ReusePort = v.GetBool("reuse_port")
	cfg.AuthSecret = v.GetString("auth_secret")
	return cfg, nil
}
