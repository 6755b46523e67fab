// Package config loads kiebridge settings from a YAML file and the
// environment.
//
// Every key can be set in the file or as KIEBRIDGE_<KEY>; java_home also
// falls back to JAVA_HOME. The environment wins over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/kiebridge/internal/bridge"
	"github.com/roach88/kiebridge/internal/gateway"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "KIEBRIDGE"

// DefaultStartupTimeout bounds JVM startup when the file does not.
const DefaultStartupTimeout = 60 * time.Second

// Config is the file and environment view of the gateway settings.
type Config struct {
	JavaHome       string        `mapstructure:"java_home"`
	LibDir         string        `mapstructure:"lib_dir"`
	Entrypoint     string        `mapstructure:"entrypoint"`
	JVMOptions     []string      `mapstructure:"jvm_options"`
	BridgePath     string        `mapstructure:"bridge_path"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
}

// ErrMissingLibDir is returned by Validate when no jar directory is set.
var ErrMissingLibDir = errors.New("lib_dir is not set (config file or KIEBRIDGE_LIB_DIR)")

// Load reads path, or ./kiebridge.yaml when path is empty and the file
// exists, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("entrypoint", gateway.DefaultEntrypoint)
	v.SetDefault("bridge_path", gateway.DefaultBridgePath)
	v.SetDefault("shutdown_grace", gateway.DefaultShutdownGrace)
	v.SetDefault("startup_timeout", DefaultStartupTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env vars for keys viper already knows.
	for _, key := range []string{"lib_dir", "jvm_options"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if err := v.BindEnv("java_home", EnvPrefix+"_JAVA_HOME", "JAVA_HOME"); err != nil {
		return nil, fmt.Errorf("bind java_home: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("kiebridge")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the gateway cannot start without.
func (c *Config) Validate() error {
	if c.LibDir == "" {
		return ErrMissingLibDir
	}
	if c.StartupTimeout < 0 || c.ShutdownGrace < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// Gateway converts the settings into a gateway.Config.
func (c *Config) Gateway(logger *slog.Logger, metrics *bridge.Metrics) gateway.Config {
	return gateway.Config{
		JavaHome:      c.JavaHome,
		LibDir:        c.LibDir,
		Entrypoint:    c.Entrypoint,
		JVMOptions:    c.JVMOptions,
		BridgePath:    c.BridgePath,
		ShutdownGrace: c.ShutdownGrace,
		Metrics:       metrics,
		Logger:        logger,
	}
}
