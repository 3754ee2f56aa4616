package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens-backend/internal/capture"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/logging"
	"github.com/moodlens/moodlens-backend/internal/recommend"
	"github.com/moodlens/moodlens-backend/internal/session"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

// recommender is satisfied by the API client and by localRecommender
type recommender interface {
	Recommendations(ctx context.Context, req recommend.Request) ([]recommend.Recommendation, error)
}

// localRecommender serves the fallback table when the server is not used
type localRecommender struct {
	gateway *recommend.Gateway
}

func (r localRecommender) Recommendations(ctx context.Context, req recommend.Request) ([]recommend.Recommendation, error) {
	return r.gateway.Recommend(ctx, req), nil
}

type monitorOptions struct {
	scoresPath    string
	interval      time.Duration
	minConfidence float64
	syncDebounce  time.Duration
	syncBatch     int
	offline       bool
	recommend     bool
	verbose       bool
}

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var opts monitorOptions

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a monitoring session from recorded classifier scores",
		Long: "Replays a JSON lines file of per-emotion scores through the monitoring loop, " +
			"one line per poll, and syncs confident samples to the server in the background.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				opts.interval = cfg.Monitor.PollInterval
			}
			if !cmd.Flags().Changed("min-confidence") {
				opts.minConfidence = cfg.Monitor.MinConfidence
			}
			if !cmd.Flags().Changed("sync-debounce") {
				opts.syncDebounce = cfg.Monitor.SyncDebounce
			}
			if !cmd.Flags().Changed("sync-batch") {
				opts.syncBatch = cfg.Monitor.SyncBatch
			}

			logger := logging.Discard()
			if opts.verbose {
				logger = logging.New(cfg.Log)
				logger.SetLevel(logrus.DebugLevel)
			}

			var (
				persister session.Persister
				advisor   recommender
			)
			if opts.offline {
				advisor = localRecommender{gateway: recommend.NewGateway(nil, logger)}
			} else {
				c := ctx.client()
				persister, advisor = c, c
			}
			if !opts.recommend {
				advisor = nil
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runMonitor(runCtx, cmd.OutOrStdout(), opts, persister, advisor, logger, session.WithTimeline(cfg.Timeline.Gap, cfg.Timeline.FlowWindow, cfg.Timeline.FlowLimit))
		},
	}

	cmd.Flags().StringVar(&opts.scoresPath, "scores", "", "JSON lines file of classifier scores to replay")
	cmd.Flags().DurationVar(&opts.interval, "interval", session.DefaultPollInterval, "Poll interval")
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", session.DefaultMinConfidence, "Readings at or below this confidence are not recorded")
	cmd.Flags().DurationVar(&opts.syncDebounce, "sync-debounce", session.DefaultSyncDebounce, "Quiet period before a background sync")
	cmd.Flags().IntVar(&opts.syncBatch, "sync-batch", session.DefaultSyncBatch, "Number of trailing samples sent per sync")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Do not sync samples to the server")
	cmd.Flags().BoolVar(&opts.recommend, "recommend", true, "Suggest activities for the session when it ends")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log monitoring activity to stderr")
	_ = cmd.MarkFlagRequired("scores")
	return cmd
}

func runMonitor(ctx context.Context, out io.Writer, opts monitorOptions, persister session.Persister, advisor recommender, logger *logrus.Logger, managerOpts ...session.ManagerOption) error {
	file, err := os.Open(opts.scoresPath)
	if err != nil {
		return fmt.Errorf("open scores: %w", err)
	}
	readings, err := capture.ParseScores(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", opts.scoresPath, err)
	}

	managerOpts = append(managerOpts, session.WithManagerLogger(logger))
	var syncer *session.Syncer
	if persister != nil {
		syncer = session.NewSyncer(persister, logger, 0)
		managerOpts = append(managerOpts, session.WithSyncer(syncer, opts.syncDebounce, opts.syncBatch))
	}
	manager := session.NewManager(managerOpts...)

	replay := capture.NewReplay(readings)
	monitor := session.NewMonitor(&capture.StillCamera{}, replay, manager, logger,
		session.WithPollInterval(opts.interval),
		session.WithMinConfidence(opts.minConfidence),
	)

	id, err := monitor.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Session %s started, replaying %s readings\n", id, formatCount(len(readings)))

	interrupted := false
	select {
	case <-replay.Drained():
		if syncer != nil {
			syncer.Flush()
		}
	case <-ctx.Done():
		interrupted = true
	}

	if err := monitor.Stop(); err != nil {
		return err
	}

	snap := manager.Snapshot()
	if interrupted {
		fmt.Fprintln(out, "Interrupted; unsynced samples were dropped")
	}
	fmt.Fprintf(out, "Session %s finished after %s\n\n", snap.ID, formatDuration(manager.Elapsed()))
	printSummaryTo(out, snap.Summary)

	if flow := manager.Flow(); len(flow) > 0 {
		fmt.Fprintf(out, "\nFlow: %s\n", joinArrow(formatLabels(flow)))
	}
	if episodes := manager.Episodes(timeline.UnsetGap); len(episodes) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderEpisodes(out, episodes))
	}

	if advisor == nil || interrupted || snap.Summary.Dominant == emotion.None {
		return nil
	}
	req := sessionRequest(manager)
	recs, err := advisor.Recommendations(ctx, req)
	if err != nil {
		fmt.Fprintf(out, "\nRecommendations unavailable: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "\nSuggested for %s:\n", formatLabel(req.Current))
	printRecommendations(out, recs)
	return nil
}

// sessionRequest builds a recommendation lookup from the dominant label, the
// recent labels and the elapsed time of the session
func sessionRequest(manager *session.Manager) recommend.Request {
	return recommend.Request{
		Current:         manager.Summary().Dominant,
		Recent:          manager.RecentLabels(session.DefaultContextWindow),
		SessionDuration: manager.Elapsed(),
	}
}
