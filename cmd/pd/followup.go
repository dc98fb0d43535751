package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/followup"
)

func newFollowupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Follow-up reminder commands",
	}

	cmd.AddCommand(newFollowupSendCmd())
	cmd.AddCommand(newFollowupWatchCmd())
	return cmd
}

func newFollowupSendCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the follow-up digest now",
		Long: `Lists cards whose follow-up falls before now plus the configured lookahead
and sends them to every configured destination. With --dry-run the digest is
printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollowupSend(cmd, configPath, dryRun)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest without sending it")
	return cmd
}

func runFollowupSend(cmd *cobra.Command, configPath string, dryRun bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	now := time.Now()

	if dryRun {
		items, err := followup.Due(gormDB, now, cfg.Followup.Lookahead)
		if err != nil {
			return err
		}
		d := followup.BuildDigest(items, now)
		if d == nil {
			fmt.Fprintln(out, "No follow-ups due.")
			return nil
		}
		fmt.Fprintf(out, "%s\n\n%s\n", d.Title, d.Body)
		return nil
	}

	notifier, err := followup.FromConfig(cfg.Followup)
	if err != nil {
		return err
	}
	if len(notifier) == 0 {
		return fmt.Errorf("no follow-up destinations configured (followup.slack_webhook_url, discord_webhook_url or smtp)")
	}
	d, err := followup.Send(context.Background(), gormDB, now, cfg.Followup.Lookahead, notifier)
	if err != nil {
		return err
	}
	if d == nil {
		fmt.Fprintln(out, "No follow-ups due.")
		return nil
	}
	fmt.Fprintf(out, "Sent: %s\n", d.Title)
	return nil
}

func newFollowupWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Send the follow-up digest on its schedule",
		Long:  "Runs in the foreground and sends the digest each time followup.schedule fires.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollowupWatch(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runFollowupWatch(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	notifier, err := followup.FromConfig(cfg.Followup)
	if err != nil {
		return err
	}
	if len(notifier) == 0 {
		return fmt.Errorf("no follow-up destinations configured (followup.slack_webhook_url, discord_webhook_url or smtp)")
	}
	next, err := followup.NextRun(cfg.Followup.Schedule, time.Now())
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

	fmt.Fprintf(out, "Watching follow-ups (%q), next run %s\n", cfg.Followup.Schedule, next.Format(followUpLayout))
	return followup.Run(ctx, followup.RunOpts{
		DB:        gormDB,
		Notifier:  notifier,
		Schedule:  cfg.Followup.Schedule,
		Lookahead: cfg.Followup.Lookahead,
		OnSent: func(d *followup.Digest) {
			fmt.Fprintf(out, "%s Sent: %s\n", time.Now().Format(followUpLayout), d.Title)
		},
	})
}
