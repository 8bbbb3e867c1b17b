package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/ui"
)

var (
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "xx [prompt]",
	Short: "A streaming chat client for the terminal",
	Long: `xx talks to a chat completions backend and streams replies as they arrive.

Examples:
  xx what is a goroutine
  xx chat --mode typewriter
  git diff | xx ask "review this change"
  xx serve

Replies are shown instantly by default. Use 'xx config set-mode typewriter'
to reveal them one character at a time.`,
	Args:                       cobra.ArbitraryArgs,
	RunE:                       runRoot,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	askFlags.register(rootCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
}

// runRoot treats bare arguments as a one-shot prompt.
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ui.IsTerminal(os.Stdin) {
		return cmd.Help()
	}
	return runAsk(cmd, args)
}

func setupLogging(debug bool) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// SetVersion records the build version shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}
