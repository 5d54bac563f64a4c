package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cwbudde/scryptbench/internal/bench"
	"github.com/cwbudde/scryptbench/internal/kdf"
	"github.com/cwbudde/scryptbench/internal/kernel"
)

const envPrefix = "SCRYPTBENCH"

// settings is the resolved run configuration. It does not change after startup.
type settings struct {
	Workers        int
	BatchWidth     int
	LocalWidth     int
	ReportInterval time.Duration
	KernelDir      string
	ResultsDir     string
	Backend        bench.Backend
	Params         kdf.Params
}

func registerBenchFlags(flags *pflag.FlagSet) {
	flags.Int("workers", 2, "Number of concurrent workers, each with its own queue and buffers")
	flags.Int("batch", 2048, "Batch width (global work size)")
	flags.Int("local", 64, "Local group width (0 lets the runtime choose)")
	flags.Duration("report-interval", bench.DefaultReportInterval, "Rolling hashrate window")
	flags.String("kernel-dir", kernel.DefaultDir, "Directory holding <KERNEL>.cl")
	flags.String("results-dir", "", "Save a run summary under this directory (empty disables); also the default for runs --data-dir")
	flags.String("backend", string(bench.BackendOpenCL), "Backend: opencl or cpu")
	flags.Int("scrypt-n", kdf.DefaultParams.N, "scrypt N (memory/time cost)")
	flags.Int("scrypt-r", kdf.DefaultParams.R, "scrypt r (block size)")
	flags.Int("scrypt-p", kdf.DefaultParams.P, "scrypt p (parallelization)")
}

// loadSettings layers flags over SCRYPTBENCH_* environment variables over the config file.
func loadSettings(flags *pflag.FlagSet, cfgFile string) (settings, error) {
	v, err := newViper(cfgFile)
	if err != nil {
		return settings{}, err
	}
	if err := v.BindPFlags(flags); err != nil {
		return settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	backend, err := bench.NormalizeBackend(v.GetString("backend"))
	if err != nil {
		return settings{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	s := settings{
		Workers:        v.GetInt("workers"),
		BatchWidth:     v.GetInt("batch"),
		LocalWidth:     v.GetInt("local"),
		ReportInterval: v.GetDuration("report-interval"),
		KernelDir:      v.GetString("kernel-dir"),
		ResultsDir:     v.GetString("results-dir"),
		Backend:        backend,
		Params: kdf.Params{
			N: v.GetInt("scrypt-n"),
			R: v.GetInt("scrypt-r"),
			P: v.GetInt("scrypt-p"),
		},
	}
	if err := s.validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}

// newViper reads SCRYPTBENCH_* variables and, when cfgFile is set, the config file.
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}
	return v, nil
}

func (s settings) validate() error {
	if s.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", errUsage, s.Workers)
	}
	if s.BatchWidth <= 0 {
		return fmt.Errorf("%w: batch must be positive, got %d", errUsage, s.BatchWidth)
	}
	if s.LocalWidth < 0 || (s.LocalWidth > 0 && s.BatchWidth%s.LocalWidth != 0) {
		return fmt.Errorf("%w: local width %d must divide batch width %d", errUsage, s.LocalWidth, s.BatchWidth)
	}
	if s.ReportInterval <= 0 {
		return fmt.Errorf("%w: report interval must be positive, got %s", errUsage, s.ReportInterval)
	}
	if err := s.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}
