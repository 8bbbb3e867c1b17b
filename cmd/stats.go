package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and streaming performance",
	Long: `Display a dashboard of your xx usage: request counts, success rates,
time to first text, total reply time, presentation modes, and failures.

Data is collected automatically and stored locally in ~/.xx-cli/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 xx stats\n\n")

		if summary.TotalRequests == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Use xx for a while and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		green.Fprintf(os.Stderr, "  Requests:    ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalRequests)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Success:     ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}

		green.Fprintf(os.Stderr, "  First text:  ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstTextMs)
		green.Fprintf(os.Stderr, "  Full reply:  ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgTotalMs)
		if summary.TotalTokens > 0 {
			green.Fprintf(os.Stderr, "  Tokens:      ")
			fmt.Fprintf(os.Stderr, "%d\n", summary.TotalTokens)
		}

		printBreakdown(cyan, dim, "Modes", summary.ModeBreakdown, summary.TotalRequests, true)
		printBreakdown(cyan, dim, "Subcommands", summary.SubcmdBreakdown, summary.TotalRequests, false)
		printBreakdown(cyan, dim, "Failures", summary.ErrorBreakdown, summary.TotalRequests, false)

		if len(summary.TopModels) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Models")
			for i, m := range summary.TopModels {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", m.Model)
				dim.Fprintf(os.Stderr, "(%dx)\n", m.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}

func printBreakdown(title, label *color.Color, name string, counts map[string]int, total int, bars bool) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(os.Stderr)
	title.Fprintf(os.Stderr, "  %s\n", name)
	for _, k := range keys {
		count := counts[k]
		label.Fprintf(os.Stderr, "  %-22s ", k)
		if !bars {
			fmt.Fprintf(os.Stderr, "%d\n", count)
			continue
		}
		pct := float64(count) / float64(total) * 100
		bar := strings.Repeat("█", int(pct/5))
		fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, count, pct)
	}
}
