package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and backend connectivity",
	Long: `Run a health check on your xx setup.
Verifies the configured endpoint, API key, backend reachability,
streaming settings and terminal support.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 xx doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " · %s", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		cfg, _ := config.Load()

		check("xx binary", func() (string, error) {
			path, err := os.Executable()
			if err != nil {
				return "", fmt.Errorf("could not find xx binary")
			}
			return fmt.Sprintf("%s (%s)", path, version), nil
		})

		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", fmt.Errorf("warn:~/.xx-cli not found, it will be created on first use")
			}
			if !info.IsDir() {
				return "", fmt.Errorf("~/.xx-cli exists but is not a directory")
			}
			return dir, nil
		})

		check("Endpoint URL", func() (string, error) {
			u, err := url.Parse(cfg.APIURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return "", fmt.Errorf("%q is not a valid URL, run: xx config set-url <url>", cfg.APIURL)
			}
			return cfg.APIURL, nil
		})

		check("API key", func() (string, error) {
			if cfg.APIKey == "" {
				return "", fmt.Errorf("warn:not set, the backend must supply its own key (xx config set-key <key>)")
			}
			return maskKey(cfg.APIKey), nil
		})

		check("Backend reachable", func() (string, error) {
			health := healthURL(cfg.APIURL)
			client := &http.Client{Timeout: 3 * time.Second}
			resp, err := client.Get(health)
			if err != nil {
				return "", fmt.Errorf("could not connect to %s, is the backend running? (xx serve)", health)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("warn:%s answered with status %d", health, resp.StatusCode)
			}
			return health, nil
		})

		check("Streaming mode", func() (string, error) {
			if cfg.StreamMode == config.ModeTypewriter {
				return fmt.Sprintf("%s, %dms per character", cfg.StreamMode, cfg.TypewriterSpeed), nil
			}
			return cfg.StreamMode, nil
		})

		check("Terminal output", func() (string, error) {
			if !ui.IsTerminal(os.Stdout) {
				return "", fmt.Errorf("warn:stdout is not a terminal, markdown rendering is disabled")
			}
			return "markdown rendering available", nil
		})

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}

// healthURL derives the backend health endpoint from the completions URL.
func healthURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/chat/completions") + "/health"
	u.RawQuery = ""
	return u.String()
}
