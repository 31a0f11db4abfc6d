package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
)

func boardCmd(opts *globalOptions) *cobra.Command {
	var (
		owner    string
		filter   string
		search   string
		expanded string
	)
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Render an assignee's task board",
		Example: `  listctl board --owner "Jason Evenson"
  listctl board --owner "Jason Evenson" --filter at-risk --expand ATL-014`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := domain.ParseFilter(filter)
			if !ok {
				return fmt.Errorf("unknown filter %q", filter)
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			tasks, err := board.NewLoader(client, opts.logger(cmd.ErrOrStderr())).Load(ctx, owner)
			if err != nil {
				return err
			}
			store := board.NewStore(board.DefaultNoteLimit)
			store.Load(tasks)
			store.SetFilter(f)
			store.SetSearch(search)
			if expanded != "" {
				store.SetExpanded(expanded)
			}

			view := board.ProjectSnapshot(store.Snapshot())
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			renderBoard(cmd.OutOrStdout(), owner, view)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&owner, "owner", "", "assignee display name; empty shows every task")
	fl.StringVar(&filter, "filter", "all", "all, on-track or a status")
	fl.StringVar(&search, "search", "", "case-insensitive title search")
	fl.StringVar(&expanded, "expand", "", "task id to show in detail")
	return cmd
}

var statusColors = map[domain.Status]color.Attribute{
	domain.StatusCompleted:  color.FgGreen,
	domain.StatusInProgress: color.FgCyan,
	domain.StatusOnTrack:    color.FgCyan,
	domain.StatusAtRisk:     color.FgYellow,
	domain.StatusBlocked:    color.FgRed,
}

func renderBoard(w io.Writer, owner string, v board.BoardView) {
	if owner != "" {
		fmt.Fprintf(w, "[%s] %s\n", board.Initials(owner), owner)
	}
	s := v.Stats
	fmt.Fprintf(w, "Total %d  On track %d  In progress %d  At risk %d  Blocked %d\n\n",
		s.Total, s.OnTrack, s.InProgress, s.AtRisk, s.Blocked)

	if len(v.Tasks) == 0 {
		fmt.Fprintln(w, v.Empty)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPROGRESS\tDUE")
	for _, t := range v.Tasks {
		label := t.StatusLabel
		if attr, ok := statusColors[t.Status]; ok {
			label = color.New(attr).Sprint(label)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, label, t.ProgressText, t.DueDate)
	}
	_ = tw.Flush()

	for _, t := range v.Tasks {
		if !t.Expanded {
			continue
		}
		fmt.Fprintf(w, "\n%s  %s\n", t.ID, t.Title)
		fmt.Fprintf(w, "  Phase: %s  Workstream: %s  Owner: %s\n", t.Phase, t.Workstream, t.Owner)
		fmt.Fprintf(w, "  Notes (%d):\n", t.NoteCount)
		for _, n := range t.Notes {
			fmt.Fprintf(w, "    %s  %s\n", n.Date, n.Text)
		}
		if len(t.Attachments) > 0 {
			fmt.Fprintln(w, "  Attachments:")
			for _, a := range t.Attachments {
				fmt.Fprintf(w, "    %s (%s)\n", a.Name, a.SizeText)
			}
		}
	}
}
