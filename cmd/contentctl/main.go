package main

import (
	"encoding/json"
	"fmt"
	"headless-cms/internal/config"
	"headless-cms/internal/data"
	"headless-cms/internal/handler"
	"headless-cms/internal/logger"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg *config.Config
	log logger.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "contentctl",
		Short:         "Manage content for the headless CMS API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Log, os.Stderr)
			return nil
		},
	}
	root.AddCommand(a.migrateCmd(), a.importCmd(), a.previewCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) openDB() (*sqlx.DB, error) {
	db, err := data.NewDB(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := data.ApplyMigrations(a.cfg.DB); err != nil {
				return err
			}
			a.log.Info("Migrations applied successfully.")
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Create blog pages from markdown files with YAML front matter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			im := newImporter(data.NewSQLPageRepository(db), a.log.Component("import"))
			n, err := im.ImportDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.log.Info(fmt.Sprintf("Imported %d pages", n))
			return nil
		},
	}
}

func (a *app) previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Manage preview snapshots",
	}
	cmd.AddCommand(a.previewCreateCmd(), a.previewPruneCmd())
	return cmd
}

func (a *app) previewCreateCmd() *cobra.Command {
	var contentType, token string
	cmd := &cobra.Command{
		Use:   "create <snapshot.json>",
		Short: "Store a page snapshot and print its preview URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := data.ParsePageType(contentType)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var snapshot data.PageSnapshot
			if err := json.Unmarshal(raw, &snapshot); err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}
			page, err := data.NewPreviewable(t)
			if err != nil {
				return err
			}
			if err := page.ApplySnapshot(&snapshot); err != nil {
				return fmt.Errorf("invalid snapshot: %w", err)
			}
			if token == "" {
				token = uuid.NewString()
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := data.NewPreviewRepository(db).CreateSnapshot(cmd.Context(), t.ContentType(), token, &snapshot); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), previewURL(a.cfg, t, token))
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "type", string(data.TypeBlogPage), "page type of the snapshot, as <app>.<model>")
	cmd.Flags().StringVar(&token, "token", "", "preview token (generated when empty)")
	return cmd
}

func (a *app) previewPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete preview snapshots older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := data.NewPreviewRepository(db).DeleteOlderThan(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			a.log.Info(fmt.Sprintf("Deleted %d previews", n))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "minimum age of the previews to delete")
	return cmd
}

// previewURL is the API address rendering the snapshot stored under token.
func previewURL(cfg *config.Config, t data.PageType, token string) string {
	q := url.Values{}
	q.Set("content_type", t.ContentType())
	q.Set("token", token)
	return fmt.Sprintf("%s%s/%s/?%s", cfg.API.BaseURL, strings.TrimSuffix(cfg.API.Prefix, "/"), handler.PreviewEndpoint, q.Encode())
}
