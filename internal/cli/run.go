// Package cli implements the mdclip command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mdclip/internal/app"
	"mdclip/internal/config"
	"mdclip/internal/logging"
)

// Run executes the command line in args.
func Run(args []string, stdout io.Writer, stderr io.Writer) error {
	runCtx, stopSignal := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignal()

	env := &environment{stdout: stdout, stderr: stderr}
	defer env.close()

	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(runCtx)
}

func newRootCmd(env *environment) *cobra.Command {
	root := &cobra.Command{
		Use:   "mdclip",
		Short: "Clip web articles to Markdown and translate them section by section",
		Long: `mdclip saves the readable part of a web page as Markdown, downloads its
images, and translates stored articles one section at a time.

Settings live in settings.yaml under the data directory (MDCLIP_DATA_DIR,
default ~/.mdclip). Provider API keys can also come from ANTHROPIC_API_KEY,
GEMINI_API_KEY or OPENAI_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSaveCmd(env),
		newTranslateCmd(env),
		newListCmd(env),
		newShowCmd(env),
		newDeleteCmd(env),
		newClearCmd(env),
		newExportCmd(env),
		newStatsCmd(env),
		newServeCmd(env),
		newSettingsCmd(env),
		newVersionCmd(env),
	)
	return root
}

// environment lazily builds the configuration, logger and application for
// the commands that need them.
type environment struct {
	stdout io.Writer
	stderr io.Writer

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	app       *app.App
}

func (e *environment) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, closer, err := logging.New(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	}, e.stderr)
	if err != nil {
		return nil, err
	}

	e.cfg = cfg
	e.log = log
	e.logCloser = closer
	return cfg, nil
}

func (e *environment) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, e.log)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *environment) close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			e.log.Warn().Err(err).Msg("close article store")
		}
	}
	if e.logCloser != nil {
		_ = e.logCloser.Close()
	}
}

func (e *environment) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.stdout, format, args...)
}

func (e *environment) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.stderr, format, args...)
}
