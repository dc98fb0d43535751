package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/board"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/models"
	"github.com/zulandar/pipedesk/internal/pipeline"
	"gorm.io/gorm"
)

const (
	dateLayout     = "2006-01-02"
	followUpLayout = "2006-01-02 15:04"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline management commands",
	}

	cmd.AddCommand(newPipelineListCmd())
	cmd.AddCommand(newPipelineCreateCmd())
	cmd.AddCommand(newPipelineShowCmd())
	cmd.AddCommand(newPipelineRenameCmd())
	cmd.AddCommand(newPipelineDeleteCmd())
	cmd.AddCommand(newPipelineMoveCmd())
	cmd.AddCommand(newPipelineHistoryCmd())
	return cmd
}

func newPipelineListCmd() *cobra.Command {
	var (
		configPath string
		filters    pipeline.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Long:  "Lists active pipelines, newest date first. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineList(cmd, configPath, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.UserID, "user", "", "filter by owning user id")
	cmd.Flags().StringVar(&filters.TeamID, "team", "", "filter by owning team id")
	return cmd
}

func runPipelineList(cmd *cobra.Command, configPath string, filters pipeline.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := pipeline.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No pipelines found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDATE")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, truncate(pipeline.DisplayName(p), 40), p.Date.Format(dateLayout))
	}
	w.Flush()
	return nil
}

func newPipelineCreateCmd() *cobra.Command {
	var (
		configPath string
		as         string
		name       string
		date       string
		team       string
		stages     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline",
		Long:  "Creates a pipeline seeded with the configured default stages unless --stage is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.CreateOpts{Name: name, TeamID: team, Stages: stages}
			if date != "" {
				d, err := time.ParseInLocation(dateLayout, date, time.Local)
				if err != nil {
					return crmerr.Validation("--date %q: want YYYY-MM-DD", date)
				}
				opts.Date = d
			}
			return runPipelineCreate(cmd, configPath, as, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	cmd.Flags().StringVar(&name, "name", "", "pipeline name (defaults to the date)")
	cmd.Flags().StringVar(&date, "date", "", "pipeline date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&team, "team", "", "owning team id (default: the acting user)")
	cmd.Flags().StringArrayVar(&stages, "stage", nil, "stage name, repeatable, in order")
	return cmd
}

func runPipelineCreate(cmd *cobra.Command, configPath, as string, opts pipeline.CreateOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx, _, err := actorContext(gormDB, as)
	if err != nil {
		return err
	}

	p, err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).Create(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created pipeline %s (%s)\n", p.ID, pipeline.DisplayName(*p))
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	fmt.Fprintf(out, "Stages: %s\n", strings.Join(names, ", "))
	return nil
}

func newPipelineShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pipeline board",
		Long:  "Displays each stage of the pipeline in order with the cards it holds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runPipelineShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	detail, err := pipeline.Get(gormDB, id)
	if err != nil {
		return err
	}
	if detail == nil {
		return crmerr.NotFound("pipeline", id)
	}
	printBoard(cmd.OutOrStdout(), board.FromDetail(detail))
	return nil
}

func printBoard(out io.Writer, b *board.Board) {
	fmt.Fprintf(out, "%s (%d cards)\n", b.DisplayName, b.CardCount())
	for _, s := range b.Stages {
		fmt.Fprintf(out, "\n== %s [%s] (%d)\n", s.Name, s.ID, len(s.Cards))
		if len(s.Cards) == 0 {
			continue
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range s.Cards {
			name := strings.TrimSpace(c.Contact.Name + " " + c.Contact.Surname)
			follow := "-"
			if c.NextFollowUpAt != nil {
				follow = c.NextFollowUpAt.Format(followUpLayout)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", c.ID, truncate(name, 30), orDash(c.Contact.Phone), follow)
		}
		w.Flush()
	}
}

func newPipelineRenameCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a pipeline",
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
			p, err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed pipeline %s to %q\n", p.ID, pipeline.DisplayName(*p))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func newPipelineDeleteCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pipeline",
		Long:  "Soft-deletes a pipeline. Its stages and cards stay in the database but are no longer listed.",
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
			if err := pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages).Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted pipeline %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func newPipelineMoveCmd() *cobra.Command {
	var configPath, as string

	cmd := &cobra.Command{
		Use:   "move <card-id> <stage-id>",
		Short: "Move a card to another stage",
		Long:  "Moves a card to another stage of its pipeline, records the move, and prints the updated board.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineMove(cmd, configPath, as, args[0], args[1])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	return cmd
}

func runPipelineMove(cmd *cobra.Command, configPath, as, cardID, stageID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx, _, err := actorContext(gormDB, as)
	if err != nil {
		return err
	}
	card, err := pipeline.GetCard(gormDB, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return crmerr.NotFound("card", cardID)
	}

	session := board.NewSession(pipeline.NewService(gormDB, cfg.Pipeline.DefaultStages))
	if err := session.Select(ctx, card.PipelineID); err != nil {
		return err
	}
	if err := session.MoveCard(ctx, cardID, stageID); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Moved card %s to stage %s\n\n", cardID, stageID)
	printBoard(out, session.Snapshot())
	return nil
}

func newPipelineHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history <card-id>",
		Short: "Show a card's stage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineHistory(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runPipelineHistory(cmd *cobra.Command, configPath, cardID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	moves, err := pipeline.History(gormDB, cardID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(moves) == 0 {
		fmt.Fprintln(out, "No moves recorded.")
		return nil
	}

	names, err := stageNames(gormDB, moves)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tFROM\tTO\tBY")
	for _, m := range moves {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			m.CreatedAt.Format(followUpLayout), names[m.FromStageID], names[m.ToStageID], m.ChangedByID)
	}
	w.Flush()
	return nil
}

// stageNames maps every stage id referenced by moves to its name, including
// stages that have since been deleted.
func stageNames(gormDB *gorm.DB, moves []models.CardMove) (map[string]string, error) {
	ids := make([]string, 0, len(moves)*2)
	for _, m := range moves {
		ids = append(ids, m.FromStageID, m.ToStageID)
	}
	var stages []models.Stage
	if err := gormDB.Where("id IN ?", ids).Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	names := make(map[string]string, len(stages))
	for _, s := range stages {
		names[s.ID] = s.Name
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = id
		}
	}
	return names, nil
}
