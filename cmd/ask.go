package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/ui"
)

// maxStdin bounds how much piped input is attached to a prompt.
const maxStdin = 256 << 10

var (
	askFlags  presentFlags
	askSystem string
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask a single question and stream the answer",
	Long: `Send one prompt and stream the reply to stdout.

Piped input is attached to the prompt, so it can be used in pipelines.

Examples:
  xx ask "what does tar -xzf do"
  cat main.go | xx ask "explain this file"
  xx ask --mode typewriter --speed 15 "tell me a joke"`,
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	opts, err := askFlags.chatOptions(ui.IsTerminal(os.Stdout))
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	piped, err := readPiped(os.Stdin)
	if err != nil {
		return fmt.Errorf("could not read stdin: %w", err)
	}
	prompt = buildPrompt(prompt, piped)
	if prompt == "" {
		return fmt.Errorf("nothing to ask: pass a prompt or pipe some input")
	}

	var msgs []ai.Message
	if askSystem != "" {
		msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: askSystem})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: prompt})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client := ai.NewClient(cfg)
	reply, err := streamReply(ctx, client, msgs, askFlags.markdown, "", opts...)
	recordStats("ask", cfg.Model, reply, err)
	return err
}

// readPiped returns stdin when it is not a terminal.
func readPiped(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(f, maxStdin))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func buildPrompt(prompt, piped string) string {
	switch {
	case piped == "":
		return prompt
	case prompt == "":
		return piped
	}
	return prompt + "\n\n```\n" + piped + "\n```"
}

func init() {
	askFlags.register(askCmd)
	askCmd.Flags().StringVar(&askSystem, "system", "", "System prompt to send before the question")
}
