package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mdclip/internal/config"
)

func newSettingsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current settings (API key redacted)",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := env.config()
				if err != nil {
					return err
				}
				settings, err := config.LoadSettings(cfg.SettingsPath())
				if err != nil {
					return err
				}

				out, err := yaml.Marshal(settings.Redacted())
				if err != nil {
					return fmt.Errorf("marshal settings: %w", err)
				}
				env.printf("# %s\n%s", cfg.SettingsPath(), out)
				if settings.APIKey == "" && cfg.APIKeyOverride(settings.Provider) != "" {
					env.printf("# api_key for %s comes from the environment\n", settings.Provider)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting",
			Long:  "Change one setting. Keys: " + strings.Join(config.SettingKeys(), ", "),
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				return updateSettings(env, func(s *config.Settings) error {
					return s.Set(args[0], args[1])
				}, "Updated: "+strings.ToLower(strings.TrimSpace(args[0])))
			},
		},
		&cobra.Command{
			Use:   "reset-prompt",
			Short: "Restore the default translation prompt",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return updateSettings(env, func(s *config.Settings) error {
					s.PromptTemplate = ""
					return nil
				}, "Prompt template reset to default")
			},
		},
	)
	return cmd
}

func updateSettings(env *environment, update func(*config.Settings) error, done string) error {
	cfg, err := env.config()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		return err
	}
	if err := update(&settings); err != nil {
		return err
	}
	if err := config.SaveSettings(cfg.SettingsPath(), settings); err != nil {
		return err
	}
	env.printf("%s\n", done)
	return nil
}
