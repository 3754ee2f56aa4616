package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens-backend/internal/emotion"
	"github.com/moodlens/moodlens-backend/internal/recommend"
)

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	var (
		current  string
		recent   string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Ask for wellness activities that fit an emotion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := emotion.ParseLabel(current)
			if err != nil {
				return fmt.Errorf("--emotion: %w", err)
			}
			recs, err := ctx.client().Recommendations(cmd.Context(), recommend.Request{
				Current:         label,
				Recent:          emotion.ParseLabels(recent),
				SessionDuration: duration,
			})
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, recs)
			}

			printRecommendations(cmd.OutOrStdout(), recs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&current, "emotion", "e", string(emotion.Neutral), "Current dominant emotion")
	cmd.Flags().StringVar(&recent, "recent", "", "Comma separated recent emotions, oldest first")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Length of the current session")
	return cmd
}

func printRecommendations(out io.Writer, recs []recommend.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No recommendations")
		return
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		minutes := "-"
		if r.Duration != nil {
			minutes = fmt.Sprintf("%g min", *r.Duration)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Priority),
			titleCaser.String(string(r.Type)),
			r.Title,
			minutes,
			r.Description,
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Priority", "Type", "Title", "Duration", "Description"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
}

func newCompanionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "companion <feeling...>",
		Short: "Describe how you feel and get a supportive message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := ctx.client().Companion(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"message": message})
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server and its language model connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, llmHealth, err := ctx.client().Health(cmd.Context())
			if err != nil {
				return wrapRequestError(err, ctx.apiURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"server": health, "llm": llmHealth})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:     %s at %s\n", health.Status, ctx.apiURL())
			if st := health.Storage; st != nil {
				state := yesNo(st.Healthy, "healthy", "unhealthy: "+st.LastError)
				fmt.Fprintf(out, "Storage:    %s (checked %s)\n", state, humanize.Time(st.LastCheck))
			}
			fmt.Fprintf(out, "Language:   %s\n", yesNo(llmHealth.Configured, "configured", "not configured"))
			fmt.Fprintf(out, "Breaker:    %s\n", llmHealth.Breaker)

			keys := make([]string, 0, len(llmHealth.Metrics.Requests))
			for k := range llmHealth.Metrics.Requests {
				keys = append(keys, k)
			}
			if len(keys) == 0 {
				return nil
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{
					k,
					formatCount(int(llmHealth.Metrics.Requests[k])),
					formatCount(int(llmHealth.Metrics.Errors[k])),
					fmt.Sprintf("%d ms", llmHealth.Metrics.AvgLatencyMs[k]),
				})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(out, []string{"Provider", "Requests", "Errors", "Avg latency"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			return nil
		},
	}
}

func yesNo(value bool, yes, no string) string {
	if value {
		return yes
	}
	return no
}
