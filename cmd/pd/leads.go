package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/leads"
)

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Lead list commands",
	}

	cmd.AddCommand(newLeadsFoldersCmd())
	cmd.AddCommand(newLeadsFolderCreateCmd())
	cmd.AddCommand(newLeadsFolderRenameCmd())
	cmd.AddCommand(newLeadsFolderDeleteCmd())
	cmd.AddCommand(newLeadsImportCmd())
	cmd.AddCommand(newLeadsShowCmd())
	cmd.AddCommand(newLeadsExportCmd())
	return cmd
}

func newLeadsFoldersCmd() *cobra.Command {
	var (
		configPath string
		filters    leads.Filters
	)

	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List lead folders",
		Long:  "Lists active folders, newest first, with their files and how many leads have been reached.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeadsFolders(cmd, configPath, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.UserID, "user", "", "filter by owning user id")
	cmd.Flags().StringVar(&filters.TeamID, "team", "", "filter by owning team id")
	return cmd
}

func runLeadsFolders(cmd *cobra.Command, configPath string, filters leads.Filters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	folders, err := leads.ListFolders(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(folders) == 0 {
		fmt.Fprintln(out, "No folders found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFILES\tREACHED")
	for _, f := range folders {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\n", f.ID, truncate(f.Name, 40), len(f.Files), f.ContactedLeads, f.TotalLeads)
		for _, file := range f.Files {
			fmt.Fprintf(w, "  %s\t%s\t\t%d/%d\n", file.ID, truncate(file.Name, 38), file.ContactedLeads, file.TotalLeads)
		}
	}
	w.Flush()
	return nil
}

func newLeadsFolderCreateCmd() *cobra.Command {
	var (
		configPath string
		as         string
		opts       leads.FolderOpts
	)

	cmd := &cobra.Command{
		Use:   "folder-create <name>",
		Short: "Create a lead folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return runLeadsFolderCreate(cmd, configPath, as, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	cmd.Flags().StringVar(&opts.ParentID, "parent", "", "parent folder id")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "owning team id (default: the acting user)")
	return cmd
}

func runLeadsFolderCreate(cmd *cobra.Command, configPath, as string, opts leads.FolderOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	_, user, err := actorContext(gormDB, as)
	if err != nil {
		return err
	}
	if opts.TeamID == "" {
		opts.UserID = user.ID
	}
	folder, err := leads.CreateFolder(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (%s)\n", folder.ID, folder.Name)
	return nil
}

func newLeadsFolderRenameCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "folder-rename <id> <name>",
		Short: "Rename a lead folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			folder, err := leads.UpdateFolder(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed folder %s to %q\n", folder.ID, folder.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newLeadsFolderDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "folder-delete <id>",
		Short: "Delete a lead folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := leads.DeleteFolder(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newLeadsImportCmd() *cobra.Command {
	var configPath, as, name string

	cmd := &cobra.Command{
		Use:   "import <folder-id> <file>",
		Short: "Import a comma-separated lead file into a folder",
		Long: `Reads a comma-separated file whose first line holds the column names and
stores every row in the folder. A "reached" column is added when missing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeadsImport(cmd, configPath, as, args[0], args[1], name)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &as)
	cmd.Flags().StringVar(&name, "name", "", "file name to store (default: the file's base name)")
	return cmd
}

func runLeadsImport(cmd *cobra.Command, configPath, as, folderID, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	_, user, err := actorContext(gormDB, as)
	if err != nil {
		return err
	}

	parsed := leads.ParseDelimitedText(string(data))
	file, err := leads.Upload(gormDB, leads.UploadOpts{
		FolderID: folderID,
		FileName: name,
		Headers:  parsed.Headers,
		Rows:     parsed.Rows,
		ActorID:  user.ID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d leads into %s (file %s)\n", len(file.Rows), folderID, file.ID)
	return nil
}

func newLeadsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <file-id>",
		Short: "Show the rows of a lead file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			file, err := leads.GetFile(gormDB, args[0])
			if err != nil {
				return err
			}
			if file == nil {
				return crmerr.NotFound("lead file", args[0])
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprint(w, "ROW")
			for _, h := range file.Columns {
				fmt.Fprintf(w, "\t%s", h)
			}
			fmt.Fprintln(w)
			for _, row := range file.Rows {
				fmt.Fprint(w, row.ID)
				data := row.Data.Data()
				for _, h := range file.Columns {
					fmt.Fprintf(w, "\t%s", orDash(truncate(data[h], 30)))
				}
				fmt.Fprintln(w)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newLeadsExportCmd() *cobra.Command {
	var configPath, output string

	cmd := &cobra.Command{
		Use:   "export <file-id>",
		Short: "Export a lead file as comma-separated text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			file, err := leads.GetFile(gormDB, args[0])
			if err != nil {
				return err
			}
			if file == nil {
				return crmerr.NotFound("lead file", args[0])
			}

			if output == "" || output == "-" {
				return leads.Export(cmd.OutOrStdout(), file)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := leads.Export(f, file); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d leads to %s\n", len(file.Rows), output)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
