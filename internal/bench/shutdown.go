package bench

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Shutdown is the process-wide cooperative cancellation flag. It only ever moves from
// false to true; workers poll it at the top of each iteration.
type Shutdown struct {
	flag   atomic.Bool
	once   sync.Once
	logger *slog.Logger
	notice io.Writer

	mu    sync.Mutex
	sigCh chan os.Signal
	done  chan struct{}
}

// NewShutdown returns an unset flag. A nil logger uses slog.Default().
func NewShutdown(logger *slog.Logger) *Shutdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shutdown{logger: logger}
}

// SetNotice prints the shutdown reason to w as a "W:" line instead of logging it,
// so the notice does not depend on the log level. Call it before Listen.
func (s *Shutdown) SetNotice(w io.Writer) {
	s.notice = w
}

// Request sets the flag. Only the first call reports reason and returns true.
// The notice is written before the flag becomes visible to workers.
func (s *Shutdown) Request(reason string) bool {
	flipped := false
	s.once.Do(func() {
		if s.notice != nil {
			fmt.Fprintf(s.notice, "W: %s\n", reason)
		} else {
			s.logger.Warn(reason)
		}
		s.flag.Store(true)
		flipped = true
	})
	return flipped
}

// Requested reports whether shutdown has been requested.
func (s *Shutdown) Requested() bool {
	return s.flag.Load()
}

// Listen requests shutdown when any of sigs arrives (os.Interrupt if none given).
// It does not wait for or interrupt in-flight device work.
func (s *Shutdown) Listen(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sigCh != nil {
		return
	}
	s.sigCh = make(chan os.Signal, 1)
	s.done = make(chan struct{})
	signal.Notify(s.sigCh, sigs...)

	go func(sigCh <-chan os.Signal, done <-chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				s.Request("Ctrl-C detected. terminating...")
			}
		}
	}(s.sigCh, s.done)
}

// Stop unregisters the signal handler installed by Listen.
func (s *Shutdown) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sigCh == nil {
		return
	}
	signal.Stop(s.sigCh)
	close(s.done)
	s.sigCh = nil
}
