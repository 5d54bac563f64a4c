package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/scryptbench/internal/bench"
	"github.com/cwbudde/scryptbench/internal/kdf"
	"github.com/cwbudde/scryptbench/internal/kernel"
	"github.com/cwbudde/scryptbench/internal/opencl"
	"github.com/cwbudde/scryptbench/internal/store"
)

var errTableModified = errors.New("reference table modified during run")

// runBenchmark initializes the backend, builds the reference table and runs workers
// until interrupted. It returns only after every worker joined and resources are released.
func runBenchmark(cmd *cobra.Command, kernelName string, s settings) error {
	runID := uuid.New().String()
	log := slog.Default().With("run_id", runID)
	stdout := cmd.OutOrStdout()

	log.Info("initializing OpenCL environment",
		"kernel", kernelName,
		"backend", s.Backend,
		"workers", s.Workers,
		"batch", s.BatchWidth,
		"local", s.LocalWidth,
		"scrypt_n", s.Params.N,
		"scrypt_r", s.Params.R,
		"scrypt_p", s.Params.P,
	)

	queues, release, err := openQueues(stdout, kernelName, s)
	if err != nil {
		return err
	}
	defer release()

	log.Info("computing answers", "count", s.BatchWidth)
	table, err := kdf.ComputeTable(kdf.DefaultTemplate, s.Params, s.BatchWidth)
	if err != nil {
		return fmt.Errorf("failed to compute reference digests: %w", err)
	}
	fingerprint := table.Fingerprint()
	log.Info("answers ready", "fingerprint", fmt.Sprintf("%x", fingerprint))

	stop := bench.NewShutdown(log)
	stop.SetNotice(stdout)
	stop.Listen(os.Interrupt)
	defer stop.Stop()

	stats, err := bench.Run(queues, table, stop, bench.Options{
		ReportInterval: s.ReportInterval,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	if after := table.Fingerprint(); after != fingerprint {
		return fmt.Errorf("%w: fingerprint %x, expected %x", errTableModified, after, fingerprint)
	}
	log.Info("answers unchanged", "fingerprint", fmt.Sprintf("%x", fingerprint))

	fmt.Fprintln(stdout, stats)
	log.Info("ended",
		"hashes", stats.Hashes,
		"elapsed", stats.Elapsed,
		"mismatched_batches", stats.Mismatches,
	)

	if s.ResultsDir == "" {
		return nil
	}
	return saveSummary(log, s.ResultsDir, newSummary(runID, kernelName, s, stats, time.Now()))
}

func newSummary(runID, kernelName string, s settings, stats bench.Stats, finished time.Time) *store.Summary {
	return &store.Summary{
		RunID:      runID,
		Kernel:     kernelName,
		Backend:    string(s.Backend),
		Workers:    stats.Workers,
		BatchWidth: s.BatchWidth,
		LocalWidth: s.LocalWidth,
		ScryptN:    s.Params.N,
		ScryptR:    s.Params.R,
		ScryptP:    s.Params.P,
		Hashes:     stats.Hashes,
		Iterations: stats.Iterations,
		Mismatches: stats.Mismatches,
		Elapsed:    stats.Elapsed,
		Hashrate:   stats.HashesPerSecond(),
		Finished:   finished,
	}
}

func saveSummary(log *slog.Logger, dir string, summary *store.Summary) error {
	st, err := store.NewFSStore(dir)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	if err := st.SaveSummary(summary); err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	log.Info("run summary saved", "path", st.RunDir(summary.RunID))
	return nil
}

// openQueues creates one private queue per worker and a teardown func to run after join.
func openQueues(stdout io.Writer, kernelName string, s settings) ([]bench.Queue, func(), error) {
	noop := func() {}

	switch s.Backend {
	case bench.BackendCPU:
		slog.Info("cpu backend selected, kernel source is not compiled", "kernel", kernelName)
		queues := make([]bench.Queue, s.Workers)
		for i := range queues {
			queues[i] = bench.NewHostQueue(kdf.DefaultTemplate, s.Params, s.BatchWidth)
		}
		return queues, noop, nil

	case bench.BackendOpenCL:
		src, err := kernel.Load(s.KernelDir, kernelName)
		if err != nil {
			return nil, noop, err
		}

		mgr, err := opencl.Init(src.Text, opencl.Config{
			Workers:     s.Workers,
			BatchWidth:  s.BatchWidth,
			LocalWidth:  s.LocalWidth,
			OutputSize:  s.BatchWidth * kdf.DigestLen,
			ScratchSize: s.Params.ScratchSize(s.BatchWidth),
			Options:     kernel.BuildOptions,
			EntryPoint:  kernel.EntryPoint,
		})
		var buildErr *opencl.BuildError
		if errors.As(err, &buildErr) {
			fmt.Fprintf(stdout, "I: kernel build log:\n%s\n", buildErr.Log)
		}
		if err != nil {
			return nil, noop, err
		}
		fmt.Fprintf(stdout, "I: kernel build log:\n%s\n", mgr.BuildLog)

		sets := mgr.Sets()
		queues := make([]bench.Queue, len(sets))
		for i, ws := range sets {
			queues[i] = ws
		}
		return queues, mgr.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: %s", bench.ErrUnknownBackend, s.Backend)
	}
}
