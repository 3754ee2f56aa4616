package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens-backend/internal/aggregate"
	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/timeline"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := ctx.client().Sessions(cmd.Context())
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{s.ID, formatMillis(s.StartTime), formatSpan(s.StartTime, s.EndTime)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"ID", "Started", "Length"}, rows, nil))
			return nil
		},
	}
}

func newSessionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Show a session with its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := ctx.client().Session(cmd.Context(), args[0])
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, detail)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s\n", detail.ID)
			fmt.Fprintf(out, "Started:    %s\n", formatMillis(detail.StartTime))
			fmt.Fprintf(out, "Length:     %s\n", formatSpan(detail.StartTime, detail.EndTime))
			fmt.Fprintf(out, "Dominant:   %s\n", formatLabel(detail.DominantEmotion))
			fmt.Fprintf(out, "Confidence: %s\n", formatAverage(detail.AverageConfidence))
			fmt.Fprintf(out, "Samples:    %s\n", formatCount(len(detail.Emotions)))
			if len(detail.Emotions) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSamples(out, detail.Emotions))
			return nil
		},
	}
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Show label counts and the dominant emotion of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := ctx.client().Summary(cmd.Context(), args[0])
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}
			printSummary(cmd, summary)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, summary aggregate.Summary) {
	printSummaryTo(cmd.OutOrStdout(), summary)
}

func printSummaryTo(out io.Writer, summary aggregate.Summary) {
	fmt.Fprintf(out, "Dominant:   %s\n", formatLabel(summary.Dominant))
	fmt.Fprintf(out, "Confidence: %s\n", formatAverage(summary.AverageConfidence))
	fmt.Fprintf(out, "Samples:    %s\n", formatCount(summary.TotalSamples))
	if summary.Empty() {
		return
	}

	rows := make([][]string, 0, len(summary.Counts))
	for _, l := range emotion.Labels() {
		n := summary.Counts[l]
		if n == 0 {
			continue
		}
		share := float64(n) / float64(summary.TotalSamples)
		rows = append(rows, []string{formatLabel(l), formatCount(n), formatPercent(share)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(out, []string{"Emotion", "Count", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
}

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var gap time.Duration

	cmd := &cobra.Command{
		Use:   "timeline <id>",
		Short: "Show the emotion episodes of a session, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if gap < 0 {
				return fmt.Errorf("--gap must not be negative")
			}
			if !cmd.Flags().Changed("gap") {
				gap = timeline.UnsetGap
			}
			tl, err := ctx.client().Timeline(cmd.Context(), args[0], gap)
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, tl)
			}

			out := cmd.OutOrStdout()
			if len(tl.Flow) > 0 {
				fmt.Fprintf(out, "Flow: %s\n\n", joinArrow(formatLabels(tl.Flow)))
			}
			if len(tl.Episodes) == 0 {
				fmt.Fprintln(out, "No episodes")
				return nil
			}
			fmt.Fprintln(out, renderEpisodes(out, tl.Episodes))
			return nil
		},
	}
	cmd.Flags().DurationVar(&gap, "gap", 0, "Largest pause that still extends an episode (server default when unset)")
	return cmd
}

func renderEpisodes(w io.Writer, episodes []timeline.Episode) string {
	rows := make([][]string, 0, len(episodes))
	for _, e := range episodes {
		rows = append(rows, []string{
			formatLabel(e.Label),
			time.UnixMilli(e.StartTime).Format("15:04:05"),
			formatDuration(e.Duration()),
			formatCount(e.Count),
			formatPercent(e.AverageConfidence),
		})
	}
	return renderTable(w, []string{"Emotion", "Start", "Duration", "Samples", "Confidence"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight})
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the newest samples across all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			samples, err := ctx.client().Recent(cmd.Context(), limit)
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, samples)
			}
			out := cmd.OutOrStdout()
			if len(samples) == 0 {
				fmt.Fprintln(out, "No samples recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderSamples(out, samples))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of samples to show")
	return cmd
}

func renderSamples(w io.Writer, samples []emotion.Sample) string {
	rows := make([][]string, 0, len(samples))
	for i, s := range samples {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatLabel(s.Label),
			formatPercent(s.Confidence),
			time.UnixMilli(s.Timestamp).Format("2006-01-02 15:04:05"),
		})
	}
	return renderTable(w, []string{"#", "Emotion", "Confidence", "Time"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft})
}
