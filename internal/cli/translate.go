package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mdclip/internal/app"
	"mdclip/internal/render"
	"mdclip/internal/translate"
)

func newTranslateCmd(env *environment) *cobra.Command {
	var (
		printResult bool
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "translate <id>",
		Short: "Translate a stored article section by section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}

			result, err := translateWithProgress(cmd.Context(), env, a, id)
			if err != nil {
				return fmt.Errorf("translate article %d: %s", id, userError(err))
			}

			switch {
			case outPath != "":
				if err := os.WriteFile(outPath, []byte(result.TranslatedMarkdown), 0o644); err != nil {
					return fmt.Errorf("write translation %s: %w", outPath, err)
				}
				env.printf("Output: %s\n", outPath)
			case printResult:
				env.printf("%s\n", result.TranslatedMarkdown)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printResult, "print", false, "Print the translated Markdown")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the translated Markdown to this file")
	return cmd
}

// translateWithProgress runs a translation and prints one progress line per
// finished section to stderr.
func translateWithProgress(ctx context.Context, env *environment, a *app.App, id int64) (*translate.Result, error) {
	events, unsubscribe := a.Events().Subscribe(fmt.Sprintf("cli_%d", id))

	progress := render.NewProgressive(id)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range events {
			applied, err := progress.Apply(event)
			if err != nil {
				env.log.Warn().Err(err).Msg("progress event rejected")
				continue
			}
			if applied {
				env.errorf("%s\n", progress.StatusLine())
			}
		}
	}()

	result, err := a.Translate(ctx, id)
	unsubscribe()
	wg.Wait()
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("Translated: %d (%d sections", id, len(result.Sections))
	if result.FallbackCount > 0 {
		summary += fmt.Sprintf(", %d kept in the original language", result.FallbackCount)
	}
	env.printf("%s)\n", summary)
	return result, nil
}

// userError prefers the run's user-facing message and names the failure
// kind for translation errors.
func userError(err error) string {
	kind := translate.KindOf(err)
	if kind == "" {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", kind, strings.TrimSpace(translate.UserMessage(err)))
}
