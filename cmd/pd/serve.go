package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/api"
	"github.com/zulandar/pipedesk/internal/followup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noFollowup bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the JSON API. When follow-up destinations are configured the
reminder digest runs on its schedule in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, !noFollowup)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default server.port)")
	cmd.Flags().BoolVar(&noFollowup, "no-followup", false, "do not run the follow-up digest scheduler")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, withFollowup bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if withFollowup {
		notifier, err := followup.FromConfig(cfg.Followup)
		if err != nil {
			return err
		}
		if len(notifier) > 0 {
			fmt.Fprintf(out, "Follow-up digest scheduled %q to %d destination(s)\n", cfg.Followup.Schedule, len(notifier))
			go func() {
				err := followup.Run(ctx, followup.RunOpts{
					DB:        gormDB,
					Notifier:  notifier,
					Schedule:  cfg.Followup.Schedule,
					Lookahead: cfg.Followup.Lookahead,
				})
				if err != nil {
					log.Printf("followup: scheduler: %v", err)
				}
			}()
		}
	}

	return api.Start(ctx, api.StartOpts{
		DB:     gormDB,
		Config: cfg,
		Port:   port,
		Out:    out,
	})
}
