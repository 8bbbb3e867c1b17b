package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage xx configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Set the API key sent to the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Println("API key saved successfully.")
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the model (default: gpt-4o-mini)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Set the chat completions endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIURL(args[0]); err != nil {
			return fmt.Errorf("failed to save endpoint: %w", err)
		}
		fmt.Printf("Endpoint set to %s.\n", args[0])
		return nil
	},
}

var setModeCmd = &cobra.Command{
	Use:       "set-mode <instant|typewriter>",
	Short:     "Set how replies are shown while streaming",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{config.ModeInstant, config.ModeTypewriter},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetStreamMode(args[0]); err != nil {
			return err
		}
		fmt.Printf("Streaming mode set to %s.\n", args[0])
		return nil
	},
}

var setSpeedCmd = &cobra.Command{
	Use:   "set-speed <ms>",
	Short: "Set the typewriter delay per character in milliseconds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := strconv.Atoi(args[0])
		if err != nil {
			return &config.InvalidValueError{Field: "typewriter speed", Value: args[0], Hint: "a positive number of milliseconds"}
		}
		if err := config.SetTypewriterSpeed(ms); err != nil {
			return err
		}
		fmt.Printf("Typewriter speed set to %dms.\n", ms)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Endpoint:   %s\n", cfg.APIURL)
		fmt.Printf("Model:      %s\n", cfg.Model)
		fmt.Printf("API Key:    %s\n", maskKey(cfg.APIKey))
		fmt.Printf("Mode:       %s\n", cfg.StreamMode)
		fmt.Printf("Speed:      %dms\n", cfg.TypewriterSpeed)
		fmt.Printf("Config Dir: %s\n", config.Dir())
		return nil
	},
}

// maskKey hides all but the ends of a key. Short keys are hidden entirely.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setURLCmd)
	configCmd.AddCommand(setModeCmd)
	configCmd.AddCommand(setSpeedCmd)
	configCmd.AddCommand(showCmd)
}
