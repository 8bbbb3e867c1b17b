package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/stats"
	"github.com/enoch-sit/project-1-xx/internal/stream"
	"github.com/enoch-sit/project-1-xx/internal/ui"
)

const markdownWidth = 100

// presentFlags are the presentation flags shared by chat and ask.
type presentFlags struct {
	mode     string
	speedMs  int
	markdown bool
}

func (f *presentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Presentation mode: instant or typewriter")
	cmd.Flags().IntVar(&f.speedMs, "speed", 0, "Typewriter speed in milliseconds per character")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "Render the finished reply as markdown")
}

// chatOptions turns the flags into per-call client options. Without a
// terminal on stdout pacing only delays the output, so instant mode is used
// unless --mode asks otherwise.
func (f *presentFlags) chatOptions(tty bool) ([]ai.ChatOption, error) {
	var opts []ai.ChatOption
	if f.mode == "" && !tty {
		opts = append(opts, ai.WithMode(stream.ModeInstant))
	}
	if f.mode != "" {
		m, ok := stream.ParseMode(f.mode)
		if !ok {
			return nil, &config.InvalidValueError{Field: "mode", Value: f.mode, Hint: "instant or typewriter"}
		}
		opts = append(opts, ai.WithMode(m))
	}
	if f.speedMs < 0 {
		return nil, &config.InvalidValueError{Field: "speed", Value: fmt.Sprint(f.speedMs), Hint: "a positive number of milliseconds"}
	}
	if f.speedMs > 0 {
		opts = append(opts, ai.WithCadence(time.Duration(f.speedMs)*time.Millisecond))
	}
	return opts, nil
}

// streamReply sends history and renders the reply on stdout while it
// streams. A spinner runs on stderr until the first text shows up.
func streamReply(ctx context.Context, client *ai.Client, history []ai.Message, markdown bool, prefix string, opts ...ai.ChatOption) (*ai.Reply, error) {
	markdown = markdown && ui.IsTerminal(os.Stdout)

	sp := ui.NewSpinner("Thinking...")
	sp.Start()
	defer sp.Stop()

	r := ui.NewStreamRenderer(os.Stdout, prefix)
	observe := func(text string) {
		if markdown {
			return
		}
		sp.Stop()
		r.Update(text)
	}

	reply, err := client.Chat(ctx, history, observe, opts...)
	if err != nil {
		sp.Fail("No reply")
	}
	sp.Stop()

	if markdown && reply != nil && reply.Text != "" {
		out, rerr := ui.RenderMarkdown(reply.Text, markdownWidth)
		if rerr == nil {
			fmt.Fprint(os.Stdout, out)
			return reply, err
		}
		log.Debug().Err(rerr).Msg("markdown render failed")
		r.Update(reply.Text)
	}
	r.Finish()
	return reply, err
}

// recordStats stores metrics for one request. Failures to write are logged
// and otherwise ignored.
func recordStats(subcommand, model string, reply *ai.Reply, err error) {
	if serr := stats.Save(stats.FromReply(subcommand, model, reply, err)); serr != nil {
		log.Debug().Err(serr).Msg("could not save stats")
	}
}

// printSystem shows an error as a system entry in the conversation.
func printSystem(err error) {
	red := color.New(color.FgRed)
	red.Fprintf(os.Stderr, "  system → ")
	fmt.Fprintf(os.Stderr, "%v\n\n", err)
}
