package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/board"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
)

func newStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage management commands",
	}

	cmd.AddCommand(newStageAddCmd())
	cmd.AddCommand(newStageRenameCmd())
	cmd.AddCommand(newStageDeleteCmd())
	return cmd
}

func newStageAddCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "add <pipeline-id> <name>",
		Short: "Append a stage to a pipeline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx, _, err := actorContext(gormDB, as)
			if err != nil {
				return err
			}
			session := board.NewSession(pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages))
			if err := session.Select(ctx, args[0]); err != nil {
				return err
			}
			stage, err := session.CreateStage(ctx, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added stage %s (%s) at position %d\n\n", stage.ID, stage.Name, stage.Order)
			printBoard(out, session.Snapshot())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func newStageRenameCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "rename <stage-id> <name>",
		Short: "Rename a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx, _, err := actorContext(gormDB, as)
			if err != nil {
				return err
			}
			stage, err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).RenameStage(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed stage %s to %q\n", stage.ID, stage.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func newStageDeleteCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "delete <stage-id>",
		Short: "Delete a stage",
		Long:  "Soft-deletes a stage. Cards in it disappear from the board but keep their history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx, _, err := actorContext(gormDB, as)
			if err != nil {
				return err
			}
			if err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).DeleteStage(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted stage %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card management commands",
	}

	cmd.AddCommand(newCardAddCmd())
	return cmd
}

func newCardAddCmd() *cobra.Command {
	var (
		configPath string
		as         string
		followUp   string
		notes      string
		contact    models.Contact
	)

	cmd := &cobra.Command{
		Use:   "add <stage-id>",
		Short: "Add a contact card to a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.CardOpts{StageID: args[0], Notes: notes, Contact: contact}
			if followUp != "" {
				t, err := time.ParseInLocation(followUpLayout, followUp, time.Local)
				if err != nil {
					return crmerr.Validation("--follow-up %q: want %q", followUp, followUpLayout)
				}
				opts.NextFollowUpAt = &t
			}
			return runCardAdd(cmd, configPath, as, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	cmd.Flags().StringVar(&contact.Name, "name", "", "contact first name (required)")
	cmd.Flags().StringVar(&contact.Surname, "surname", "", "contact last name")
	cmd.Flags().StringVar(&contact.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&contact.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&contact.City, "city", "", "contact city")
	cmd.Flags().StringVar(&notes, "notes", "", "card notes")
	cmd.Flags().StringVar(&followUp, "follow-up", "", "next follow-up, \"YYYY-MM-DD HH:MM\"")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runCardAdd(cmd *cobra.Command, configPath, as string, opts pipeline.CardOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx, _, err := actorContext(gormDB, as)
	if err != nil {
		return err
	}

	card, err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).CreateCard(ctx, opts)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(card.Contact.Name + " " + card.Contact.Surname)
	fmt.Fprintf(cmd.OutOrStdout(), "Created card %s for %s\n", card.ID, name)
	return nil
}
