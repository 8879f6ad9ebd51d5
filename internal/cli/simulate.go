package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/interlink-transfers/internal/config"
	"github.com/rescale/interlink-transfers/internal/constants"
	"github.com/rescale/interlink-transfers/internal/engine"
	"github.com/rescale/interlink-transfers/internal/events"
	"github.com/rescale/interlink-transfers/internal/localization"
	"github.com/rescale/interlink-transfers/internal/logging"
	"github.com/rescale/interlink-transfers/internal/progress"
	"github.com/rescale/interlink-transfers/internal/transfer"
)

// defaultControlDelay is how long --cancel-one waits when --pause-after is not set.
const defaultControlDelay = 500 * time.Millisecond

// simulateOptions holds the simulate flags.
type simulateOptions struct {
	uploads    int
	downloads  int
	mode       string
	locale     string
	failRate   float64
	pauseAfter time.Duration
	cancelOne  bool
	seed       uint64
}

// simulationResult counts how the transfers of a run ended.
type simulationResult struct {
	Total       int
	Completed   int
	Failed      int
	Cancelled   int
	Interrupted int
}

// newSimulateCmd creates the 'simulate' command.
func newSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run simulated transfers with live progress bars",
		Long: `Run a batch of simulated uploads and downloads and display their progress.

No data is moved: each transfer advances a byte counter at the configured
rate. Settings come from transfers.conf; flags override them.

Controls:
  --pause-after 2s   Pause every active transfer after 2s, resume 2s later
  --cancel-one       Cancel the first transfer part way

Examples:
  interlink-transfers simulate --uploads 5 --downloads 3
  interlink-transfers simulate --mode summary --fail-rate 0.2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSimConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applySimulateFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			res, err := runSimulation(GetContext(), cfg, opts, cmd.ErrOrStderr(), GetLogger())
			fmt.Fprintf(cmd.OutOrStdout(), "%d transfers: %d completed, %d failed, %d cancelled, %d interrupted\n",
				res.Total, res.Completed, res.Failed, res.Cancelled, res.Interrupted)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.uploads, "uploads", constants.DefaultSimUploads, "Number of simulated uploads")
	cmd.Flags().IntVar(&opts.downloads, "downloads", constants.DefaultSimDownloads, "Number of simulated downloads")
	cmd.Flags().StringVar(&opts.mode, "mode", config.DisplayBars, "Display mode: bars or summary")
	cmd.Flags().StringVar(&opts.locale, "locale", constants.DefaultLocale, "Message language (en, fr)")
	cmd.Flags().Float64Var(&opts.failRate, "fail-rate", 0, "Probability that a transfer fails part way (0-1)")
	cmd.Flags().DurationVar(&opts.pauseAfter, "pause-after", 0, "Pause all transfers after this delay, then resume after the same delay")
	cmd.Flags().BoolVar(&opts.cancelOne, "cancel-one", false, "Cancel the first transfer part way")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed for sizes and failures (0 = time based)")

	return cmd
}

// applySimulateFlags overrides cfg with the flags set on the command line.
func applySimulateFlags(cmd *cobra.Command, cfg *config.SimConfig, opts simulateOptions) {
	flags := cmd.Flags()
	if flags.Changed("uploads") {
		cfg.Simulation.Uploads = opts.uploads
	}
	if flags.Changed("downloads") {
		cfg.Simulation.Downloads = opts.downloads
	}
	if flags.Changed("mode") {
		cfg.Display.Mode = opts.mode
	}
	if flags.Changed("locale") {
		cfg.Display.Locale = opts.locale
	}
	if flags.Changed("fail-rate") {
		cfg.Simulation.FailureRate = opts.failRate
	}
}

// runSimulation wires engine, monitor and display together and blocks
// until every transfer ended. The display draws on w.
func runSimulation(ctx context.Context, cfg *config.SimConfig, opts simulateOptions, w io.Writer, log *logging.Logger) (simulationResult, error) {
	text, err := localization.NewCatalog(cfg.Display.Locale)
	if err != nil {
		return simulationResult{}, fmt.Errorf("failed to load messages: %w", err)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	monitor := transfer.NewMonitor(
		transfer.NewTracker(transfer.WithEventBus(bus), transfer.WithLocalizer(text)),
		log,
	)

	var display progress.Display
	if cfg.Display.Mode == config.DisplaySummary {
		display = progress.NewSummaryBar(w)
	} else {
		display = progress.NewBoard(w, cfg.RefreshInterval())
	}
	if display.IsTerminal() {
		// Route logs through the display so they print above the bars.
		prev := log.Output()
		log.SetOutput(display.Writer())
		defer log.SetOutput(prev)
	}

	eventsDone := make(chan struct{})
	// Only failures are logged at info level; debug logging sees every event.
	var sub <-chan events.Event
	if log.DebugEnabled() {
		sub = bus.SubscribeAll()
	} else {
		sub = bus.Subscribe(events.EventTransferFailed)
	}
	go func() {
		defer close(eventsDone)
		logTransferEvents(log, sub)
	}()

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	jobs := engine.NewJobs(engine.Workload{
		Uploads:     cfg.Simulation.Uploads,
		Downloads:   cfg.Simulation.Downloads,
		MinSize:     cfg.Simulation.MinSize,
		MaxSize:     cfg.Simulation.MaxSize,
		FailureRate: cfg.Simulation.FailureRate,
	}, rand.New(rand.NewPCG(seed, seed>>1)))
	for _, j := range jobs {
		monitor.Start(j.ID, j.Name, j.State, j.Direction)
	}
	log.Debug().Int("jobs", len(jobs)).Uint64("seed", seed).Msg("starting simulation")

	updates := make(chan transfer.Update, constants.UpdateChannelBuffer)
	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		// Drains until updates is closed; engines stop on ctx themselves.
		_ = monitor.Consume(context.Background(), updates)
	}()

	renderCtx, stopRender := context.WithCancel(context.Background())
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		progress.Render(renderCtx, monitor, display, cfg.RefreshInterval())
	}()

	controlCtx, stopControl := context.WithCancel(ctx)
	controlDone := make(chan struct{})
	go func() {
		defer close(controlDone)
		controlTransfers(controlCtx, monitor, jobs, opts, log)
	}()

	sim := engine.NewSimulator(engine.Config{
		ChunkSize:     cfg.Engine.ChunkSize,
		PollInterval:  cfg.PollInterval(),
		Rate:          cfg.Engine.RateBytesPerSec,
		TotalRate:     cfg.Engine.TotalRateBytesPerSec,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	}, log)
	stopped := sim.RunAll(ctx, jobs, updates)

	stopControl()
	<-controlDone
	close(updates)
	<-consumeDone

	res := simulationResult{Total: len(jobs)}
	for _, j := range jobs {
		err, ok := stopped[j.ID]
		switch {
		case !ok:
			res.Completed++
		case errors.Is(err, engine.ErrCancelled):
			// The controller that cancelled a transfer removes it.
			res.Cancelled++
			monitor.Remove(j.ID, j.Direction)
		case errors.Is(err, engine.ErrSimulatedFailure):
			res.Failed++
		default:
			res.Interrupted++
			monitor.MarkErrored(j.ID, j.Direction)
		}
	}

	stopRender()
	<-renderDone

	if n := monitor.Active(); n > 0 {
		log.Warnf("%d transfers did not reach a final state", n)
	}
	cleared := monitor.ClearFinished(transfer.Upload) + monitor.ClearFinished(transfer.Download)
	log.Debugf("cleared %d finished transfers, %d left", cleared, monitor.Len(transfer.Upload)+monitor.Len(transfer.Download))

	bus.Close()
	<-eventsDone

	if dropped := bus.GetDroppedEventCount(); dropped > 0 {
		log.Debug().Int64("dropped", dropped).Msg("event subscriber fell behind")
	}
	return res, ctx.Err()
}

// controlTransfers plays the user's part: it cancels and pauses transfers
// as requested by opts, through both the display and the state cells.
func controlTransfers(ctx context.Context, m *transfer.Monitor, jobs []engine.Job, opts simulateOptions, log *logging.Logger) {
	if opts.pauseAfter <= 0 && !opts.cancelOne {
		return
	}
	delay := opts.pauseAfter
	if delay <= 0 {
		delay = defaultControlDelay
	}
	if !sleepCtx(ctx, delay) {
		return
	}

	if opts.cancelOne && len(jobs) > 0 {
		j := jobs[0]
		if m.RequestCancel(j.ID, j.Direction) {
			log.Info().Str("name", j.Name).Msg("cancel requested")
		}
	}
	if opts.pauseAfter <= 0 {
		return
	}

	var paused []engine.Job
	for _, j := range jobs {
		e, ok := m.Entry(j.ID, j.Direction)
		if !ok || !(e.Status.Phase == transfer.PhaseStarting || e.Status.Phase == transfer.PhaseInProgress) {
			continue
		}
		if m.RequestPause(j.ID, j.Direction) {
			paused = append(paused, j)
		}
	}
	log.Infof("%d transfers paused", len(paused))

	// Resume even when ctx ended so no engine is left parked.
	sleepCtx(ctx, opts.pauseAfter)
	for _, j := range paused {
		m.RequestPause(j.ID, j.Direction)
	}
	log.Infof("%d transfers resumed", len(paused))
}

// logTransferEvents logs tracker events until the bus is closed.
// Progress events are skipped; the display already shows them.
func logTransferEvents(log *logging.Logger, ch <-chan events.Event) {
	for ev := range ch {
		te, ok := ev.(*events.TransferEvent)
		if !ok {
			continue
		}
		switch te.Type() {
		case events.EventTransferProgress:
		case events.EventTransferFailed:
			log.Warn().
				Str("name", te.Name).
				Str("direction", te.Direction).
				AnErr("cause", te.Error).
				Msg(te.Description)
		default:
			log.Debug().
				Str("event", string(te.Type())).
				Str("name", te.Name).
				Str("direction", te.Direction).
				Msg(te.Description)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
