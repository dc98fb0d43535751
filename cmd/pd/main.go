package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/auth"
	"github.com/zulandar/pipedesk/internal/config"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/db"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "pipedesk.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pd",
		Short: "Pipedesk — sales pipelines and lead lists",
		Long:  "Pipedesk tracks contacts through sales pipelines and imports lead lists for outreach.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newPipelineCmd())
	cmd.AddCommand(newStageCmd())
	cmd.AddCommand(newCardCmd())
	cmd.AddCommand(newLeadsCmd())
	cmd.AddCommand(newFollowupCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// connectFromConfig loads the config file and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// actorContext resolves --as (a user id or email) to a user and returns a
// context carrying that user as the acting identity.
func actorContext(gormDB *gorm.DB, as string) (context.Context, *models.User, error) {
	as = strings.TrimSpace(as)
	if as == "" {
		return nil, nil, crmerr.Unauthorized("--as is required")
	}
	var user models.User
	err := gormDB.Where("id = ? OR email = ?", as, strings.ToLower(as)).First(&user).Error
	if err != nil {
		return nil, nil, fmt.Errorf("resolve user %q: %w", as, err)
	}
	return auth.WithActor(context.Background(), user.ID), &user, nil
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Pipedesk config file")
}

func addActorFlag(cmd *cobra.Command, as *string) {
	cmd.Flags().StringVar(as, "as", os.Getenv("PIPEDESK_USER"), "acting user id or email (default $PIPEDESK_USER)")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
