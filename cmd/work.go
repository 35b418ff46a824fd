package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/workspace"
)

func workCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Manage works",
	}
	cmd.AddCommand(workCreateCmd())
	cmd.AddCommand(workExportCmd())
	return cmd
}

func workCreateCmd() *cobra.Command {
	var userID, title, templateID, outputMode string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new work for a user",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, st := mustOpenStore()
			defer st.Close()

			w := &store.Work{
				ID:         uuid.NewString(),
				UserID:     userID,
				Title:      title,
				TemplateID: templateID,
				OutputMode: outputMode,
			}
			if err := st.CreateWork(w); err != nil {
				fmt.Fprintln(os.Stderr, "create work:", err)
				os.Exit(1)
			}
			// materialize the workspace so the first connection finds it
			if _, err := workspace.Open(cfg.WorkspacesDir(), w.ID); err != nil {
				fmt.Fprintln(os.Stderr, "init workspace:", err)
				os.Exit(1)
			}
			fmt.Printf("work: %s\nmode: %s\nconnect: /ws/works/%s\n", w.ID, w.OutputMode, w.ID)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().StringVar(&title, "title", "", "initial title (generated from the first question when empty)")
	cmd.Flags().StringVar(&templateID, "template", "", "template id to seed paper.md from")
	cmd.Flags().StringVar(&outputMode, "mode", store.OutputMarkdown, "output mode: markdown, word, latex")
	cmd.MarkFlagRequired("user")
	return cmd
}

func workExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <work_id>",
		Short: "Export a work's workspace as a zip archive",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, st := mustOpenStore()
			defer st.Close()

			workID := args[0]
			if _, err := st.GetWork(workID); err != nil {
				fmt.Fprintln(os.Stderr, "work:", err)
				os.Exit(1)
			}
			ws, err := workspace.Open(cfg.WorkspacesDir(), workID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "workspace:", err)
				os.Exit(1)
			}
			path, err := ws.ExportZip()
			if err != nil {
				fmt.Fprintln(os.Stderr, "export:", err)
				os.Exit(1)
			}
			fmt.Println(path)
		},
	}
}

func mustOpenStore() (*config.Config, *store.Store) {
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
	return cfg, st
}
