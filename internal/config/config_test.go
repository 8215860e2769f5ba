package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/anirudhraja/protopeek/wire"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protopeek.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
proto_paths = ["schemas", " ", "vendor"]
proto_files = ["scale.proto"]
descriptor_files = ["extra.yaml"]
message = " scale.Reading "
strict_wire_type = true
max_depth = 8
log_level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	expected := Config{
		ProtoPaths:      []string{"schemas", "vendor"},
		ProtoFiles:      []string{"scale.proto"},
		DescriptorFiles: []string{"extra.yaml"},
		Message:         "scale.Reading",
		StrictWireType:  true,
		MaxDepth:        8,
		LogLevel:        "debug",
	}
	if !reflect.DeepEqual(cfg, expected) {
		t.Errorf("expected %+v, got %+v", expected, cfg)
	}
	if wc := cfg.WireConfig(); wc != (wire.Config{StrictWireType: true, MaxDepth: 8}) {
		t.Errorf("unexpected wire config %+v", wc)
	}
}

func TestLoad_DefaultsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `message = "demo.Reading"`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.ProtoPaths, []string{"."}) {
		t.Errorf("expected default proto path, got %v", cfg.ProtoPaths)
	}
	if cfg.MaxDepth != wire.DefaultMaxDepth {
		t.Errorf("expected default max depth, got %d", cfg.MaxDepth)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"unknown_key", `colour = "blue"`, "unknown key colour"},
		{"negative_depth", `max_depth = -1`, "max_depth must be >= 0"},
		{"not_proto", `proto_files = ["a.txt"]`, "is not a .proto file"},
		{"syntax", `message = `, "load config"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.body))
			if err == nil || !strings.Contains(err.Error(), test.contains) {
				t.Fatalf("expected error containing %q, got %v", test.contains, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvStrictWireType, "true")
	t.Setenv(EnvMaxDepth, "3")

	cfg := Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if !cfg.StrictWireType || cfg.MaxDepth != 3 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	t.Setenv(EnvMaxDepth, "deep")
	if err := cfg.ApplyEnvOverrides(); err == nil {
		t.Error("expected error for invalid max depth")
	}
}
