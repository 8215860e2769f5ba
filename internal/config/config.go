package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/anirudhraja/protopeek/wire"
)

const (
	EnvStrictWireType = "PROTOPEEK_STRICT_WIRE"
	EnvMaxDepth       = "PROTOPEEK_MAX_DEPTH"
)

// Config is the CLI configuration.
type Config struct {
	ProtoPaths      []string
	ProtoFiles      []string
	DescriptorFiles []string
	Message         string
	StrictWireType  bool
	MaxDepth        int
	LogLevel        string
}

type fileConfig struct {
	ProtoPaths      []string `toml:"proto_paths"`
	ProtoFiles      []string `toml:"proto_files"`
	DescriptorFiles []string `toml:"descriptor_files"`
	Message         string   `toml:"message"`
	StrictWireType  bool     `toml:"strict_wire_type"`
	MaxDepth        int      `toml:"max_depth"`
	LogLevel        string   `toml:"log_level"`
}

func Default() Config {
	return Config{
		ProtoPaths: []string{"."},
		MaxDepth:   wire.DefaultMaxDepth,
		LogLevel:   "info",
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %s", path, undecoded[0].String())
	}

	if meta.IsDefined("proto_paths") {
		cfg.ProtoPaths = normalizeList(raw.ProtoPaths)
	}
	if meta.IsDefined("proto_files") {
		cfg.ProtoFiles = normalizeList(raw.ProtoFiles)
	}
	if meta.IsDefined("descriptor_files") {
		cfg.DescriptorFiles = normalizeList(raw.DescriptorFiles)
	}
	if meta.IsDefined("message") {
		cfg.Message = strings.TrimSpace(raw.Message)
	}
	if meta.IsDefined("strict_wire_type") {
		cfg.StrictWireType = raw.StrictWireType
	}
	if meta.IsDefined("max_depth") {
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets the environment override decoder options.
func (c *Config) ApplyEnvOverrides() error {
	if raw := strings.TrimSpace(os.Getenv(EnvStrictWireType)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvStrictWireType, err)
		}
		c.StrictWireType = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvMaxDepth)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvMaxDepth, err)
		}
		c.MaxDepth = v
	}
	return c.Validate()
}

func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth)
	}
	for _, f := range c.ProtoFiles {
		if !strings.HasSuffix(f, ".proto") {
			return fmt.Errorf("proto_files entry %q is not a .proto file", f)
		}
	}
	return nil
}

// WireConfig returns the decoder options. A max depth of zero disables the
// nesting bound.
func (c Config) WireConfig() wire.Config {
	return wire.Config{
		StrictWireType: c.StrictWireType,
		MaxDepth:       c.MaxDepth,
	}
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
