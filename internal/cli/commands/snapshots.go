package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/project"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"github.com/spf13/cobra"
)

// snapshotView is the JSON shape of a snapshot with its document inlined.
type snapshotView struct {
	*state.Snapshot
	Document json.RawMessage `json:"document,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// NewSnapshotsCommand creates the snapshots command and its subcommands.
func NewSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snapshot"},
		Short:   "Manage stored project snapshots",
		Long: `Manage project snapshots in the state database.

Snapshots are full copies of a project document. The API server stores one
on every POST /api/snapshots; these commands save, inspect, restore and
prune them from the command line.`,
	}

	cmd.AddCommand(newSnapshotsListCommand())
	cmd.AddCommand(newSnapshotsShowCommand())
	cmd.AddCommand(newSnapshotsSaveCommand())
	cmd.AddCommand(newSnapshotsRestoreCommand())
	cmd.AddCommand(newSnapshotsPruneCommand())

	return cmd
}

func newSnapshotsListCommand() *cobra.Command {
	var projectName string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Example: `  # All projects
  pyblocks snapshots list

  # The last five snapshots of one project
  pyblocks snapshots list --project demo --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutDefinitions(cmd)
			store, err := cmdCtx.OpenState()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			projects := []string{projectName}
			if projectName == "" {
				if projects, err = store.Projects(cmd.Context()); err != nil {
					return err
				}
			}

			snaps := []*state.Snapshot{}
			for _, p := range projects {
				list, err := store.ListSnapshots(cmd.Context(), p, limit)
				if err != nil {
					return err
				}
				snaps = append(snaps, list...)
			}
			return listSnapshots(cmdCtx.Renderer, snaps)
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "Only list snapshots of this project")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum snapshots per project (0 for all)")

	return cmd
}

func listSnapshots(r *output.Renderer, snaps []*state.Snapshot) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(snaps)
	}
	if len(snaps) == 0 {
		r.Muted("No snapshots")
		return nil
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, fmt.Sprintf("Snapshots (%d)", len(snaps))))
		r.Println("")
	} else {
		r.Header(1, fmt.Sprintf("Snapshots (%d)", len(snaps)))
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			s.ID,
			s.Project,
			s.Version,
			fmt.Sprintf("%d", s.BlockCount),
			s.CreatedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"ID", "Project", "Version", "Blocks", "Created"}, rows)
	return nil
}

func newSnapshotsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a snapshot and the code it generates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			store, err := cmdCtx.OpenState()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snap, err := store.GetSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := snap.Decode()
			if err != nil {
				return err
			}
			ws, res, err := cmdCtx.LoadDocument(doc)
			if err != nil {
				return err
			}
			code := cmdCtx.Generator().Program(ws)

			switch r.EffectiveMode() {
			case output.ModeJSON:
				return r.JSON(snapshotView{Snapshot: snap, Document: snap.Document, Code: code})
			case output.ModeMarkdown:
				reportWarnings(r, res)
				r.Println(output.FormatHeader(1, "Snapshot "+snap.ID))
				r.Println("")
				r.Println(output.FormatKeyValue("Project", snap.Project))
				r.Println(output.FormatKeyValue("Version", snap.Version))
				r.Println(output.FormatKeyValue("Blocks", fmt.Sprintf("%d", snap.BlockCount)))
				r.Println(output.FormatKeyValue("Created", snap.CreatedAt.Format(time.RFC3339)))
				r.Println("")
				r.Println(output.FormatCodeBlock("python", code))
			default:
				reportWarnings(r, res)
				styles := r.Styles()
				r.Println(styles.Header1.Render("Snapshot " + snap.ID))
				r.Printf("  %s %s\n", styles.Bold.Render("Project:"), snap.Project)
				r.Printf("  %s %s\n", styles.Bold.Render("Version:"), snap.Version)
				r.Printf("  %s %d\n", styles.Bold.Render("Blocks:"), snap.BlockCount)
				r.Printf("  %s %s\n", styles.Bold.Render("Created:"), snap.CreatedAt.Local().Format(time.DateTime))
				r.Println("")
				r.Printf("%s", code)
			}
			return nil
		},
	}
}

func newSnapshotsSaveCommand() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "save <project-file>",
		Short: "Store a project file as a snapshot",
		Example: `  # Project name defaults to the file name without extension
  pyblocks snapshots save example_project.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutDefinitions(cmd)
			r := cmdCtx.Renderer

			doc, err := project.Load(args[0])
			if err != nil {
				return err
			}
			name := projectName
			if name == "" {
				name = projectNameFromPath(args[0])
			}

			store, err := cmdCtx.OpenState()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snap, err := store.SaveSnapshot(cmd.Context(), name, doc)
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(snap)
			}
			r.Success(fmt.Sprintf("Saved snapshot %s (%s, %d blocks)", snap.ID, snap.Project, snap.BlockCount))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "Project name (default: file name)")

	return cmd
}

func newSnapshotsRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id> <project-file>",
		Short: "Write a snapshot back to a project file",
		Long: `Write a snapshot back to a project file. The file is replaced atomically;
if writing fails the existing file is left unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutDefinitions(cmd)
			r := cmdCtx.Renderer

			store, err := cmdCtx.OpenState()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snap, err := store.GetSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := snap.Decode()
			if err != nil {
				return err
			}
			if err := project.Save(args[1], doc); err != nil {
				return err
			}
			r.StatusLine(args[1], "success", fmt.Sprintf("restored from %s", snap.ID))
			return nil
		},
	}
}

func newSnapshotsPruneCommand() *cobra.Command {
	var projectName string
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots of a project",
		Example: `  # Keep the ten newest snapshots
  pyblocks snapshots prune --project demo --keep 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectName == "" {
				return fmt.Errorf("--project is required")
			}
			cmdCtx := NewCommandContextWithoutDefinitions(cmd)
			store, err := cmdCtx.OpenState()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.PruneSnapshots(cmd.Context(), projectName, keep)
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Deleted %d snapshot(s) of %s", n, projectName))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "Project to prune")
	cmd.Flags().IntVar(&keep, "keep", 10, "Number of newest snapshots to keep")

	return cmd
}

func projectNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
