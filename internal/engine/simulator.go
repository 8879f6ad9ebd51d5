// Package engine runs simulated transfers that report to a transfer.Monitor.
//
// A transfer moves no data: it advances a byte counter at the configured
// rate, one chunk at a time. Between chunks it polls the transfer's
// StateCell, the same way a real executor would: paused transfers sleep and
// poll again, cancelled ones unwind.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/interlink-transfers/internal/constants"
	"github.com/rescale/interlink-transfers/internal/logging"
	"github.com/rescale/interlink-transfers/internal/ratelimit"
	"github.com/rescale/interlink-transfers/internal/transfer"
)

var (
	// ErrCancelled is returned by Run when the transfer's StateCell was cancelled.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrSimulatedFailure is reported for jobs configured to fail part way.
	ErrSimulatedFailure = errors.New("simulated transfer failure")
)

// Config controls the pace of simulated transfers.
type Config struct {
	ChunkSize     uint64        // Bytes per step
	PollInterval  time.Duration // Sleep between polls while paused
	Rate          uint64        // Bytes per second per transfer; 0 means no throttling
	TotalRate     uint64        // Bytes per second across all transfers; 0 means no cap
	MaxConcurrent int           // Transfers RunAll runs at once; 0 runs them all
}

// DefaultConfig returns the engine defaults from the constants package.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    constants.DefaultChunkSize,
		PollInterval: constants.DefaultPollInterval,
		Rate:         constants.DefaultRateBytesPerSec,
	}
}

// Job describes one simulated transfer.
type Job struct {
	ID        uuid.UUID
	Name      string
	Direction transfer.Direction
	Size      uint64
	State     *transfer.StateCell

	// FailAt makes the job fail once this many bytes were moved. 0 disables.
	FailAt uint64

	// HideTotal withholds the total from progress events, as an engine that
	// has not negotiated the size yet would.
	HideTotal bool
}

// Simulator executes jobs.
type Simulator struct {
	cfg    Config
	logger *logging.Logger
	shared *ratelimit.RateLimiter // nil without TotalRate
}

// NewSimulator returns a simulator. Zero config fields take their defaults.
func NewSimulator(cfg Config, logger *logging.Logger) *Simulator {
	def := DefaultConfig()
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Simulator{cfg: cfg, logger: logger}
	if cfg.TotalRate > 0 {
		s.shared = ratelimit.NewRateLimiter(float64(cfg.TotalRate), float64(cfg.ChunkSize))
	}
	return s
}

// Run executes job, sending progress to out. It returns nil on completion,
// ErrCancelled when the StateCell was cancelled, ErrSimulatedFailure when
// the job was set up to fail, or ctx.Err().
//
// Cancellation is cooperative: it is observed at the next chunk boundary.
// A cancelled job emits no further events; the controller that cancelled it
// decides when to remove the entry.
func (s *Simulator) Run(ctx context.Context, job Job, out chan<- transfer.Update) error {
	log := s.logger.With().
		Str("id", job.ID.String()).
		Str("name", job.Name).
		Str("direction", string(job.Direction)).
		Logger()

	var own *ratelimit.RateLimiter
	if s.cfg.Rate > 0 {
		own = ratelimit.NewRateLimiter(float64(s.cfg.Rate), float64(s.cfg.ChunkSize))
	}

	var moved uint64
	for moved < job.Size {
		if err := s.waitRunnable(ctx, job.State); err != nil {
			log.Debug().Err(err).Uint64("moved", moved).Msg("transfer stopped")
			return err
		}

		if job.FailAt > 0 && moved >= job.FailAt {
			log.Debug().Uint64("moved", moved).Msg("simulating failure")
			return s.send(ctx, out, job, transfer.ProgressionFailed(job.Name, transfer.KnownSize(moved), ErrSimulatedFailure), ErrSimulatedFailure)
		}

		step := s.cfg.ChunkSize
		if remaining := job.Size - moved; remaining < step {
			step = remaining
		}
		// Stop on the failure point so it is always reached.
		if job.FailAt > moved && job.FailAt-moved < step {
			step = job.FailAt - moved
		}
		if err := s.throttle(ctx, own, step); err != nil {
			return err
		}
		moved += step

		total := transfer.KnownSize(job.Size)
		if job.HideTotal {
			total = transfer.SizeHint{}
		}
		if err := s.send(ctx, out, job, transfer.CurrentProgress(job.Name, moved, total), nil); err != nil {
			return err
		}
	}

	if err := s.waitRunnable(ctx, job.State); err != nil {
		return err
	}
	log.Debug().Uint64("size", job.Size).Msg("transfer complete")
	return s.send(ctx, out, job, transfer.Complete(job.Name, transfer.KnownSize(job.Size)), nil)
}

// RunAll runs every job in its own goroutine and waits for all of them.
// With MaxConcurrent set, jobs beyond the limit wait for a slot in order and
// stay in the Starting phase meanwhile.
// The returned map holds the error of each job that did not complete.
func (s *Simulator) RunAll(ctx context.Context, jobs []Job, out chan<- transfer.Update) map[uuid.UUID]error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[uuid.UUID]error)
		slots  chan struct{}
	)
	if s.cfg.MaxConcurrent > 0 {
		slots = make(chan struct{}, s.cfg.MaxConcurrent)
	}
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			if err := s.runSlot(ctx, slots, job, out); err != nil {
				mu.Lock()
				failed[job.ID] = err
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return failed
}

// runSlot runs job once a slot is free. A nil slots channel means no limit.
func (s *Simulator) runSlot(ctx context.Context, slots chan struct{}, job Job, out chan<- transfer.Update) error {
	if slots != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case slots <- struct{}{}:
		}
		defer func() { <-slots }()
	}
	return s.Run(ctx, job, out)
}

// waitRunnable polls the state cell until it reads normal. Paused transfers
// sleep PollInterval between polls.
func (s *Simulator) waitRunnable(ctx context.Context, state *transfer.StateCell) error {
	if state == nil {
		return ctx.Err()
	}
	for {
		switch state.Read() {
		case transfer.ModeCancelled:
			return ErrCancelled
		case transfer.ModeNormal:
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// throttle waits until step bytes fit both the transfer's own rate and the
// shared total rate.
func (s *Simulator) throttle(ctx context.Context, own *ratelimit.RateLimiter, step uint64) error {
	for _, rl := range []*ratelimit.RateLimiter{own, s.shared} {
		if rl == nil {
			continue
		}
		if err := rl.WaitN(ctx, float64(step)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// send delivers one update, giving up if ctx ends first. result is returned
// after a successful send.
func (s *Simulator) send(ctx context.Context, out chan<- transfer.Update, job Job, p transfer.Progression, result error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- transfer.Update{ID: job.ID, Direction: job.Direction, Progression: p}:
		return result
	}
}
