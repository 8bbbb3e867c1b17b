package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/history"
	"github.com/enoch-sit/project-1-xx/internal/stream"
	"github.com/enoch-sit/project-1-xx/internal/ui"
)

var (
	chatFlags  presentFlags
	chatResume string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session. Replies stream in as they arrive and
context carries over between messages.

Commands inside the session:
  /mode instant|typewriter   switch how replies are shown
  /speed <ms>                typewriter delay per character
  /clear                     forget the conversation so far
  exit                       end the session

Press Ctrl+C while a reply is streaming to stop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		opts, err := chatFlags.chatOptions(ui.IsTerminal(os.Stdout))
		if err != nil {
			return err
		}

		client := ai.NewClient(cfg)
		mode := client.Mode()
		conv := history.New(cfg.Model, string(mode))
		if chatResume != "" {
			if conv, err = history.Get(chatResume); err != nil {
				return fmt.Errorf("could not resume conversation: %w", err)
			}
		}

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  xx chat")
		dim.Fprintf(os.Stderr, "  %s · %s mode\n", cfg.Model, mode)
		dim.Fprintf(os.Stderr, "  Type 'exit' to quit, /help for commands.\n\n")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			green.Fprint(os.Stderr, "  you → ")
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" || input == "bye" {
				dim.Fprintf(os.Stderr, "\n  Later! 👋\n\n")
				break
			}
			if strings.HasPrefix(input, "/") {
				if msg, err := chatCommand(input, &opts, conv); err != nil {
					printSystem(err)
				} else {
					dim.Fprintf(os.Stderr, "  %s\n\n", msg)
				}
				continue
			}

			conv.Turns = append(conv.Turns, ai.Message{Role: ai.RoleUser, Content: input})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			cyan.Fprintf(os.Stderr, "  xx → ")
			reply, err := streamReply(ctx, client, conv.Turns, chatFlags.markdown, "", opts...)
			stop()

			recordStats("chat", cfg.Model, reply, err)
			if reply != nil && reply.Text != "" {
				conv.Turns = append(conv.Turns, ai.Message{Role: ai.RoleAssistant, Content: reply.Text})
			}
			if err != nil {
				if errors.Is(err, stream.ErrCancelled) {
					dim.Fprintf(os.Stderr, "  (stopped)\n\n")
				} else {
					printSystem(err)
				}
			}
			if reply != nil {
				conv.Mode = string(reply.Mode)
			}
			if err := history.Save(conv); err != nil {
				log.Warn().Err(err).Msg("could not save conversation")
			}
		}

		return nil
	},
}

// chatCommand handles a slash command typed in the session.
func chatCommand(input string, opts *[]ai.ChatOption, conv *history.Conversation) (string, error) {
	fields := strings.Fields(input)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/mode":
		m, ok := stream.ParseMode(arg)
		if !ok {
			return "", &config.InvalidValueError{Field: "mode", Value: arg, Hint: "instant or typewriter"}
		}
		*opts = append(*opts, ai.WithMode(m))
		return fmt.Sprintf("Replies now use %s mode.", m), nil
	case "/speed":
		ms, err := strconv.Atoi(arg)
		if err != nil || ms <= 0 {
			return "", &config.InvalidValueError{Field: "speed", Value: arg, Hint: "a positive number of milliseconds"}
		}
		*opts = append(*opts, ai.WithCadence(time.Duration(ms)*time.Millisecond))
		return fmt.Sprintf("Typewriter speed set to %dms per character.", ms), nil
	case "/clear":
		conv.Turns = nil
		return "Conversation cleared.", nil
	case "/help":
		return "/mode instant|typewriter · /speed <ms> · /clear · exit", nil
	}
	return "", fmt.Errorf("unknown command %s, try /help", fields[0])
}

func init() {
	chatFlags.register(chatCmd)
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "Continue a saved conversation by ID prefix")
}
