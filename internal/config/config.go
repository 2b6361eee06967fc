// Package config loads the server's small configuration surface: a
// struct-tagged config that an optional YAML file can override before
// command-line flags are applied.
package config

import (
	"os"

	"github.com/roadrunner-server/errors"
	"gopkg.in/yaml.v3"
)

// Server is the server subcommand's full configuration.
type Server struct {
	Listen      string `yaml:"listen"`
	AdminListen string `yaml:"admin_listen"`
	CacheSize   int    `yaml:"cache_size"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// DefaultCacheSize is the maximum entry count used when neither a config
// file nor a flag overrides it.
const DefaultCacheSize = 2_000_000

// Default returns the zero-config defaults.
func Default() Server {
	return Server{
		Listen:      "127.0.0.1:11311",
		AdminListen: "127.0.0.1:11312",
		CacheSize:   DefaultCacheSize,
		LogLevel:    "info",
	}
}

// LoadFile overlays YAML file contents at path onto s, leaving fields the
// file doesn't mention untouched. Call this before applying flag
// overrides, so flags still win when both are given.
func LoadFile(path string, s *Server) error {
	const op = errors.Op("config.LoadFile")

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.E(op, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return errors.E(op, err)
	}
	return nil
}
