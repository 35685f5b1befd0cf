package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mdclip/internal/store"
)

func newSaveCmd(env *environment) *cobra.Command {
	var noTranslate bool

	cmd := &cobra.Command{
		Use:   "save <url> [url...]",
		Short: "Clip web pages into the article store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}

			urls := normalizeSourceURLs(args)
			if len(urls) == 0 {
				return errors.New("at least one URL is required")
			}

			runStart := time.Now()
			succeeded, failed := 0, 0
			for _, sourceURL := range urls {
				id, autoTranslate, err := a.SaveArticle(cmd.Context(), sourceURL)
				if err != nil {
					failed++
					env.errorf("Failed: %s (%v)\n", sourceURL, err)
					if cmd.Context().Err() != nil {
						break
					}
					continue
				}
				succeeded++
				env.printf("Saved: %d %s\n", id, sourceURL)

				if autoTranslate && !noTranslate {
					if _, err := translateWithProgress(cmd.Context(), env, a, id); err != nil {
						env.errorf("Translation failed for %d: %s\n", id, userError(err))
					}
				}
			}

			if len(urls) > 1 {
				env.printf("Done: %d succeeded, %d failed, total %s\n", succeeded, failed, time.Since(runStart).Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d URL(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noTranslate, "no-translate", false, "Skip auto translation even when auto_translate is set")
	return cmd
}

func newListCmd(env *environment) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored articles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}

			var articles []store.Article
			if strings.TrimSpace(query) != "" {
				articles, err = a.Store().SearchArticles(cmd.Context(), query)
			} else {
				articles, err = a.Store().ListArticles(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(articles) == 0 {
				env.printf("No articles.\n")
				return nil
			}

			renderArticleTable(env.stdout, articles)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only list articles whose title, URL or excerpt contains this text")
	return cmd
}

func newShowCmd(env *environment) *cobra.Command {
	var translated bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an article's Markdown",
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

			article, err := a.Store().GetArticle(cmd.Context(), id)
			if err != nil {
				return err
			}
			if translated {
				if !article.HasTranslation {
					return fmt.Errorf("article %d has no translation; run `mdclip translate %d`", id, id)
				}
				env.printf("%s\n", article.TranslatedMarkdown)
				return nil
			}
			env.printf("%s\n", article.Markdown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&translated, "translated", false, "Print the translation instead of the original")
	return cmd
}

func newDeleteCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an article and its images",
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
			if err := a.Store().DeleteArticle(cmd.Context(), id); err != nil {
				return err
			}
			env.printf("Deleted: %d\n", id)
			return nil
		},
	}
}

func newClearCmd(env *environment) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored article and image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to delete every article without --yes")
			}
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Store().ClearAll(cmd.Context()); err != nil {
				return err
			}
			env.printf("Cleared all articles\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deleting every article")
	return cmd
}

func newExportCmd(env *environment) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export one article, or all articles, as a ZIP archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			var name string
			if len(args) == 1 {
				id, err := parseArticleID(args[0])
				if err != nil {
					return err
				}
				if name, err = a.ExportArticle(cmd.Context(), &buf, id); err != nil {
					return err
				}
			} else {
				var count int
				if name, count, err = a.ExportAll(cmd.Context(), &buf); err != nil {
					return err
				}
				if count == 0 {
					return errors.New("no articles to export")
				}
			}

			target := outPath
			if target == "" {
				target = name
			} else if info, err := os.Stat(target); err == nil && info.IsDir() {
				target = filepath.Join(target, name)
			}
			if dir := filepath.Dir(target); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write archive %s: %w", target, err)
			}
			env.printf("Output: %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file or directory (default: archive name in the current directory)")
	return cmd
}

func newStatsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show article store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.Store().Stats(cmd.Context())
			if err != nil {
				return err
			}

			env.printf("Articles:     %d\n", stats.TotalArticles)
			env.printf("Translated:   %d\n", stats.TotalWithTranslation)
			env.printf("Images:       %d\n", stats.TotalImages)
			if stats.OldestArticle != nil {
				env.printf("Oldest:       %s\n", stats.OldestArticle.Local().Format(time.DateTime))
			}
			if stats.NewestArticle != nil {
				env.printf("Newest:       %s\n", stats.NewestArticle.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func parseArticleID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", store.ErrInvalidID, raw)
	}
	return id, nil
}

func normalizeSourceURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
