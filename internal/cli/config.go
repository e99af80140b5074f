package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables read by arcctl
const EnvPrefix = "ARCCTL"

// Config holds CLI configuration
type Config struct {
	ServerURL  string `mapstructure:"server"`
	Token      string `mapstructure:"token"`
	TokenFile  string `mapstructure:"token-file"`
	DeviceID   string `mapstructure:"device"`
	DeviceFile string `mapstructure:"device-file"`
	AdminKey   string `mapstructure:"admin-key"`
	Output     string `mapstructure:"output"`
	Verbose    bool   `mapstructure:"verbose"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  "http://localhost:8080",
		TokenFile:  defaultStatePath("token"),
		DeviceFile: defaultStatePath("device"),
		Output:     "text",
	}
}

// LoadConfig resolves configuration from flags, then ARCCTL_* environment
// variables, then defaults. A flag explicitly set on the command line wins.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("server", def.ServerURL)
	v.SetDefault("token", "")
	v.SetDefault("token-file", def.TokenFile)
	v.SetDefault("device", "")
	v.SetDefault("device-file", def.DeviceFile)
	v.SetDefault("admin-key", "")
	v.SetDefault("output", def.Output)
	v.SetDefault("verbose", false)

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	switch c.Output {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", c.Output)
	}
	return &c, nil
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token
	return writeState(c.TokenFile, token)
}

// ClearToken forgets the stored token
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadDevice returns the configured device id, minting and persisting one on
// first use so that every login from this machine reports the same device.
func (c *Config) LoadDevice() error {
	if c.DeviceID != "" {
		return nil
	}

	data, err := os.ReadFile(c.DeviceFile)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(data)); id != "" {
			c.DeviceID = id
			return nil
		}
	case !os.IsNotExist(err):
		return err
	}

	c.DeviceID = uuid.NewString()
	return writeState(c.DeviceFile, c.DeviceID)
}

func writeState(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0600)
}

func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".arcctl", name)
	}
	return filepath.Join(home, ".arcctl", name)
}
