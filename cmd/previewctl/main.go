package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"linkstash/internal/config"
	"linkstash/internal/scraper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Resolver replaces the default pipeline when set.
	Resolver Resolver
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("previewctl"),
		kong.Description("Resolve link previews the way linkstash does"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no arguments provided")
	}
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h" || args[0] == "help") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	if strings.HasPrefix(kctx.Command(), "classify") {
		return cli.Classify.Run(deps)
	}

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetLevel(cfg.Level())
	if cli.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	deps.Log = log

	deps.Resolver = m.Resolver
	if deps.Resolver == nil {
		orchestrator, browser := scraper.NewPipeline(scraper.Settings{
			HTTPTimeout:   cfg.HTTPTimeout,
			UserAgent:     cfg.UserAgent,
			RateLimit:     cfg.FetchRateLimit,
			ChromeBin:     cfg.ChromeBin,
			Width:         cfg.ScreenshotWidth,
			Height:        cfg.ScreenshotHeight,
			SettleDelay:   cfg.ScreenshotSettleDelay,
			RenderTimeout: cfg.RenderTimeout,
			NoScreenshots: cli.Resolve.NoScreenshot,
		}, log)
		if browser != nil {
			defer func() {
				if err := browser.Close(); err != nil {
					log.WithError(err).Warn("Error closing browser")
				}
			}()
		}
		deps.Resolver = orchestrator
	}

	return cli.Resolve.Run(deps)
}
