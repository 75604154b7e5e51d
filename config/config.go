// Package config handles indy.toml runtime configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/indy/vm/dispatch"
	"go.trai.ch/zerr"
)

// FileName is the configuration file looked for by Load and FindAndLoad.
const FileName = "indy.toml"

// Limits on max-poly.
const (
	MinMaxPoly = 1
	MaxMaxPoly = 64
)

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = zerr.New("invalid configuration")

// Config represents an indy.toml file.
type Config struct {
	Dispatch Dispatch `toml:"dispatch"`
	Log      Log      `toml:"log"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Dispatch configures the call-site caches.
type Dispatch struct {
	MaxPoly    int    `toml:"max-poly"`
	MaxFail    uint64 `toml:"max-fail"`
	Stats      bool   `toml:"stats"`
	LogBinding bool   `toml:"log-binding"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	opts := dispatch.DefaultOptions()
	return &Config{
		Dispatch: Dispatch{
			MaxPoly:    opts.MaxPoly,
			MaxFail:    opts.MaxFail,
			Stats:      opts.Stats,
			LogBinding: opts.LogBinding,
		},
	}
}

// Load parses indy.toml from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Keys the file leaves out
// keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "cannot read config"), "path", path)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "parse error"), "path", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, zerr.With(zerr.Wrap(ErrInvalid, "unknown key "+undecoded[0].String()), "path", path)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "cannot resolve path"), "path", path)
	}
	if err := c.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an indy.toml file, then loads
// it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Dispatch.MaxPoly < MinMaxPoly || c.Dispatch.MaxPoly > MaxMaxPoly {
		return zerr.With(zerr.Wrap(ErrInvalid, "dispatch.max-poly out of range"), "max-poly", c.Dispatch.MaxPoly)
	}
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 4 {
		return zerr.With(zerr.Wrap(ErrInvalid, "log.verbosity out of range"), "verbosity", c.Log.Verbosity)
	}
	return nil
}

// Options converts the dispatch section to linker options.
func (c *Config) Options() dispatch.Options {
	return dispatch.Options{
		MaxPoly:    c.Dispatch.MaxPoly,
		MaxFail:    c.Dispatch.MaxFail,
		Stats:      c.Dispatch.Stats,
		LogBinding: c.Dispatch.LogBinding,
	}
}

// LogFile returns the configured log file, or nil for stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	return &c.Log.File
}

// Encode writes c as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", zerr.Wrap(err, "encode config")
	}
	return b.String(), nil
}
