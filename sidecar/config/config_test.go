package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// isolate points the user config dir and cwd at empty temp dirs so that no
// real sidecar.yaml is picked up.
func isolate(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := Load(&cobra.Command{}, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Ports.Min != 3001 || c.Ports.Max != 3010 {
		t.Errorf("unexpected port range %d-%d", c.Ports.Min, c.Ports.Max)
	}
	if c.Backend.Runtime != "bun" || len(c.Backend.RuntimeArgs) != 1 || c.Backend.RuntimeArgs[0] != "run" {
		t.Errorf("unexpected runtime %s %v", c.Backend.Runtime, c.Backend.RuntimeArgs)
	}
	if c.Backend.EntryPoint != "packages/backend/src/index.ts" {
		t.Errorf("unexpected entry point %s", c.Backend.EntryPoint)
	}
	if len(c.Backend.Ascents) != 3 {
		t.Errorf("unexpected ascents %v", c.Backend.Ascents)
	}
	if !c.Audit.Enabled || c.Token.Enabled {
		t.Errorf("unexpected feature toggles audit=%v token=%v", c.Audit.Enabled, c.Token.Enabled)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if c.TokenTTL() != 24*time.Hour {
		t.Errorf("unexpected token ttl %v", c.TokenTTL())
	}
}

func TestLoadReadsExplicitFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "custom.yaml")
	contents := "ports:\n  min: 4000\n  max: 4002\nbackend:\n  runtime: node\n  env_file_mode: inject\n"
	if err := os.WriteFile(file, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(&cobra.Command{}, file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Ports.Min != 4000 || c.Ports.Max != 4002 {
		t.Errorf("expected file port range, got %d-%d", c.Ports.Min, c.Ports.Max)
	}
	if c.Backend.Runtime != "node" || c.Backend.EnvFileMode != "inject" {
		t.Errorf("unexpected backend %+v", c.Backend)
	}
	// Keys absent from the file keep their defaults.
	if c.Backend.EntryPoint != "packages/backend/src/index.ts" {
		t.Errorf("expected default entry point, got %s", c.Backend.EntryPoint)
	}
}

func TestLoadFindsConfigInWorkingDirectory(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("sidecar.yaml", []byte("log_file: other.log\n"), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.LogFile != "other.log" {
		t.Errorf("expected log_file from ./sidecar.yaml, got %s", c.LogFile)
	}
}

func TestLoadEnvAndFlagPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv("SIDECAR_PORTS_MAX", "3005")
	t.Setenv("SIDECAR_BACKEND_RUNTIME", "deno")

	cmd := &cobra.Command{}
	cmd.Flags().String("runtime", "bun", "")
	cmd.Flags().Bool("no-audit", false, "")
	if err := cmd.Flags().Parse([]string{"--runtime", "node", "--no-audit"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load(cmd, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Ports.Max != 3005 {
		t.Errorf("expected env to set ports.max, got %d", c.Ports.Max)
	}
	if c.Backend.Runtime != "node" {
		t.Errorf("expected flag to win over env, got %s", c.Backend.Runtime)
	}
	if c.Audit.Enabled {
		t.Error("--no-audit should disable the audit store")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte("ports: [unclosed\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(nil, file); err == nil {
		t.Error("expected error for malformed config")
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	isolate(t)
	c, err := Load(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"inverted range", func(c *Config) { c.Ports.Min, c.Ports.Max = 3010, 3001 }, "invalid port range"},
		{"port too large", func(c *Config) { c.Ports.Max = 70000 }, "invalid port range"},
		{"no runtime", func(c *Config) { c.Backend.Runtime = "" }, "backend.runtime"},
		{"absolute entry point", func(c *Config) { c.Backend.EntryPoint = "/srv/app/index.ts" }, "relative to the workspace root"},
		{"negative ascent", func(c *Config) { c.Backend.Ascents = []int{-1} }, "ascents"},
		{"bad env mode", func(c *Config) { c.Backend.EnvFileMode = "dotenv" }, "env_file_mode"},
		{"bad env pair", func(c *Config) { c.Backend.Env = []string{"NOEQUALS"} }, "KEY=VALUE"},
		{"bad duration", func(c *Config) { c.Token.TTL = "forever" }, "token.ttl"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(t)
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	explicit := Config{DataDir: t.TempDir()}
	got, err := explicit.ResolveDataDir()
	if err != nil || got != explicit.DataDir {
		t.Errorf("ResolveDataDir = %s, %v; want %s", got, err, explicit.DataDir)
	}

	if runtime.GOOS == "linux" {
		xdg := t.TempDir()
		t.Setenv("XDG_DATA_HOME", xdg)
		c := Config{Identifier: DefaultIdentifier}
		got, err := c.ResolveDataDir()
		if err != nil {
			t.Fatalf("ResolveDataDir returned error: %v", err)
		}
		if got != filepath.Join(xdg, DefaultIdentifier) {
			t.Errorf("ResolveDataDir = %s, want %s", got, filepath.Join(xdg, DefaultIdentifier))
		}

		p, err := c.InDataDir("sidecar.db")
		if err != nil || p != filepath.Join(xdg, DefaultIdentifier, "sidecar.db") {
			t.Errorf("InDataDir = %s, %v", p, err)
		}
	}

	if _, err := (Config{}).ResolveDataDir(); err == nil {
		t.Error("expected error with neither data_dir nor identifier")
	}
}

func TestDumpAndWriteConfigFile(t *testing.T) {
	c := validConfig(t)

	out, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump returned error: %v", err)
	}
	if !strings.Contains(string(out), "entry_point: packages/backend/src/index.ts") {
		t.Errorf("dump missing entry_point:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "written", "sidecar.yaml")
	c.Ports.Max = 3003
	if err := WriteConfigFile(c, path); err != nil {
		t.Fatalf("WriteConfigFile returned error: %v", err)
	}
	loaded, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load of written file returned error: %v", err)
	}
	if loaded.Ports.Max != 3003 {
		t.Errorf("expected written ports.max 3003, got %d", loaded.Ports.Max)
	}
}
