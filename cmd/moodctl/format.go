package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/moodlens/moodlens-backend/internal/emotion"
)

var titleCaser = cases.Title(language.English)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatLabel(l emotion.Label) string {
	if l == emotion.None {
		return "-"
	}
	return titleCaser.String(l.String())
}

func formatLabels(labels []emotion.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = formatLabel(l)
	}
	return out
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	t := time.UnixMilli(ms)
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04:05"), humanize.Time(t))
}

func formatSpan(start int64, end *int64) string {
	if end == nil || *end < start {
		return "-"
	}
	return formatDuration(time.Duration(*end-start) * time.Millisecond)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Truncate(time.Second).String()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

func formatAverage(avg *float64) string {
	if avg == nil {
		return "-"
	}
	return formatPercent(*avg)
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func joinArrow(parts []string) string {
	return strings.Join(parts, " -> ")
}
