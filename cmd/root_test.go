package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/scryptbench/internal/bench"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMissingKernelPrintsUsage(t *testing.T) {
	out, err := execute(t)
	if !errors.Is(err, errMissingKernel) {
		t.Fatalf("expected errMissingKernel, got %v", err)
	}
	if !errors.Is(err, errUsage) {
		t.Error("missing kernel should be a usage error")
	}
	if !strings.Contains(out, "usage: scryptbench KERNEL") {
		t.Errorf("usage line not printed to stdout: %q", out)
	}
}

func TestTooManyArguments(t *testing.T) {
	_, err := execute(t, "a", "b")
	if !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestUnreadableKernel(t *testing.T) {
	_, err := execute(t, "absent", "--kernel-dir", t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing kernel file")
	}
	if !strings.Contains(err.Error(), "failed to load kernel absent") {
		t.Errorf("unexpected error: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "scrypt", "--log-level", "loud")
	if !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "scryptbench version "+version) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		if err != nil {
			t.Errorf("parseLevel(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	cmd := newRootCmd()
	s, err := loadSettings(cmd.Flags(), "")
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}

	if s.Workers != 2 || s.BatchWidth != 2048 || s.LocalWidth != 64 {
		t.Errorf("unexpected sizes: %+v", s)
	}
	if s.ReportInterval != 3*time.Second {
		t.Errorf("expected 3s report interval, got %s", s.ReportInterval)
	}
	if s.Backend != bench.BackendOpenCL {
		t.Errorf("expected opencl backend, got %s", s.Backend)
	}
	if s.Params.N != 1024 || s.Params.R != 1 || s.Params.P != 1 {
		t.Errorf("unexpected scrypt params: %+v", s.Params)
	}
	if s.KernelDir != "kernel" {
		t.Errorf("unexpected kernel dir: %s", s.KernelDir)
	}
}

func TestLoadSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bench.yaml")
	cfg := "workers: 3\nbatch: 256\nreport-interval: 1s\nbackend: cpu\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("SCRYPTBENCH_BATCH", "512")

	cmd := newRootCmd()
	if err := cmd.Flags().Set("workers", "4"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	s, err := loadSettings(cmd.Flags(), cfgPath)
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}

	if s.Workers != 4 {
		t.Errorf("flag should win over config, got workers=%d", s.Workers)
	}
	if s.BatchWidth != 512 {
		t.Errorf("env should win over config, got batch=%d", s.BatchWidth)
	}
	if s.ReportInterval != time.Second {
		t.Errorf("config should win over default, got %s", s.ReportInterval)
	}
	if s.Backend != bench.BackendCPU {
		t.Errorf("expected cpu backend from config, got %s", s.Backend)
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		flag  string
		value string
	}{
		{"zero workers", "workers", "0"},
		{"negative batch", "batch", "-1"},
		{"local does not divide batch", "local", "48"},
		{"zero interval", "report-interval", "0s"},
		{"unknown backend", "backend", "cuda"},
		{"N not power of two", "scrypt-n", "1000"},
		{"zero r", "scrypt-r", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			if err := cmd.Flags().Set(tt.flag, tt.value); err != nil {
				t.Fatalf("failed to set flag: %v", err)
			}
			_, err := loadSettings(cmd.Flags(), "")
			if !errors.Is(err, errUsage) {
				t.Errorf("expected usage error, got %v", err)
			}
		})
	}
}

func TestLoadSettingsMissingConfigFile(t *testing.T) {
	cmd := newRootCmd()
	_, err := loadSettings(cmd.Flags(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}
