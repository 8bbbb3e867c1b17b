package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/history"
	"github.com/enoch-sit/project-1-xx/internal/ui"
)

const previewWidth = 60

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)

		for i, c := range entries {
			dim.Printf("[%s] ", c.UpdatedAt.Format("2006-01-02 15:04:05"))
			cyan.Printf("%s ", shortID(c.ID))
			fmt.Printf("%s ", ui.Preview(c.Title(), previewWidth))
			dim.Printf("(%d turns, %s)\n", len(c.Turns), c.Mode)
			if i < len(entries)-1 {
				fmt.Println()
			}
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := history.Get(args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)

		dim.Printf("\n  %s · %s · %s\n\n", conv.ID, conv.Model, conv.StartedAt.Format("2006-01-02 15:04"))
		for _, t := range conv.Turns {
			switch t.Role {
			case ai.RoleUser:
				green.Println("  you →")
			case ai.RoleAssistant:
				cyan.Println("  xx →")
			default:
				dim.Printf("  %s →\n", t.Role)
			}
			fmt.Printf("%s\n\n", ui.Wrap(t.Content, 80, 4))
		}
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export conversations as JSON or YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var v any
		if len(args) == 1 {
			conv, err := history.Get(args[0])
			if err != nil {
				return err
			}
			v = conv
		} else {
			entries, err := history.Load(0)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			v = entries
		}

		switch historyFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		case "yaml", "yml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(v)
		}
		return fmt.Errorf("unknown format %q: use json or yaml", historyFormat)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := history.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Println("History cleared.")
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of conversations to show")
	historyExportCmd.Flags().StringVarP(&historyFormat, "format", "f", "json", "Output format: json or yaml")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
