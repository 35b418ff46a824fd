package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/store"
)

// configureCmd runs the interactive model configuration wizard: one
// (user, role) LLM configuration per pass.
func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Configure a model for a user role",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintln(os.Stderr, "load config:", err)
				os.Exit(1)
			}
			st, err := store.Open(cfg.DatabasePath())
			if err != nil {
				fmt.Fprintln(os.Stderr, "open store:", err)
				os.Exit(1)
			}
			defer st.Close()

			mc := store.ModelConfig{IsActive: true}
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("User ID").
						Value(&mc.UserID).
						Validate(notEmpty("user id")),
					huh.NewSelect[string]().
						Title("Role").
						Options(
							huh.NewOption("brain (planner)", store.RoleBrain),
							huh.NewOption("code (code agent)", store.RoleCode),
							huh.NewOption("writing (writer agent)", store.RoleWriting),
						).
						Value(&mc.Role),
					huh.NewSelect[string]().
						Title("Provider").
						Options(
							huh.NewOption("Anthropic", "anthropic"),
							huh.NewOption("OpenAI", "openai"),
							huh.NewOption("DeepSeek", "deepseek"),
							huh.NewOption("Qwen", "qwen"),
							huh.NewOption("OpenRouter", "openrouter"),
						).
						Value(&mc.Provider),
					huh.NewInput().
						Title("Model ID").
						Placeholder("e.g. claude-sonnet-4-5, gpt-4o, deepseek-chat").
						Value(&mc.ModelID).
						Validate(notEmpty("model id")),
					huh.NewInput().
						Title("Base URL (empty for provider default)").
						Value(&mc.BaseURL),
					huh.NewInput().
						Title("API key").
						EchoMode(huh.EchoModePassword).
						Value(&mc.APIKey).
						Validate(notEmpty("api key")),
				),
			)
			if err := form.Run(); err != nil {
				fmt.Fprintln(os.Stderr, "configure aborted:", err)
				os.Exit(1)
			}

			if err := st.UpsertModelConfig(&mc); err != nil {
				fmt.Fprintln(os.Stderr, "save failed:", err)
				os.Exit(1)
			}
			fmt.Printf("configured %s/%s → %s %s\n", mc.UserID, mc.Role, mc.Provider, mc.ModelID)
		},
	}
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
