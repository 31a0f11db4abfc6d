package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jevenson76/atl-dashboards/listapi"
)

func statusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved site and transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			client.SiteURL()
			st := client.Status()
			if opts.asJSON {
				data, err := listapi.MarshalStatus(st)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st listapi.Status) {
	transport := "direct"
	if st.UsingProxy {
		transport = "proxy"
	}
	fmt.Fprintf(w, "Site:       %s\n", st.SiteURL)
	fmt.Fprintf(w, "Transport:  %s\n", transport)
	fmt.Fprintf(w, "Proxy:      %s\n", yesNo(st.ProxyConfigured, "configured", "not configured"))
	fmt.Fprintf(w, "Native:     %s\n", yesNo(st.NativeHost, "yes", "no"))
	if st.LastFetch != nil {
		fmt.Fprintf(w, "Last fetch: %s at %s\n", st.LastFetch.URL, st.LastFetch.Time.Format(time.RFC3339))
	}
	if st.LastError != nil {
		fmt.Fprintf(w, "Last error: %s\n", color.New(color.FgRed).Sprint(st.LastError.Error))
	}
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func testConnectionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Resolve the site and read site and task-list metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			report := client.TestConnection(ctx)
			out := cmd.OutOrStdout()
			if opts.asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Site: %s\n", report.SiteURL)
				if report.WebInfo != nil {
					fmt.Fprintf(out, "%s web %q (%s)\n", color.New(color.FgGreen).Sprint("✓"), report.WebInfo.Title, report.WebInfo.URL)
				}
				if report.TasksListInfo != nil {
					fmt.Fprintf(out, "%s list %q, %d items\n", color.New(color.FgGreen).Sprint("✓"), report.TasksListInfo.Title, report.TasksListInfo.ItemCount)
				}
				for _, e := range report.Errors {
					fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("✗"), e)
				}
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}

type queryFlags struct {
	sel     []string
	expand  []string
	filter  string
	orderBy string
	top     int
}

func (q *queryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&q.sel, "select", nil, "fields to return")
	f.StringSliceVar(&q.expand, "expand", nil, "lookup fields to expand")
	f.StringVar(&q.filter, "filter", "", "filter expression")
	f.StringVar(&q.orderBy, "orderby", "", "sort expression")
	f.IntVar(&q.top, "top", 0, "maximum rows (default from config)")
}

func (q *queryFlags) descriptor(list string) listapi.Descriptor {
	return listapi.Descriptor{
		List:    list,
		Select:  q.sel,
		Expand:  q.expand,
		Filter:  q.filter,
		OrderBy: q.orderBy,
		Top:     q.top,
	}
}

func queryCmd(opts *globalOptions) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "query <list>",
		Short: "Read items from any list",
		Example: `  listctl query ActivityLog --select Title,Created --orderby "Created desc" --top 20
  listctl query PeopleMap --filter "Active eq 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			records, err := client.FetchCollection(ctx, q.descriptor(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	q.register(cmd)
	return cmd
}

func tasksCmd(opts *globalOptions) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Read the project-plan list with the task preset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			records, err := client.GetTasks(ctx, q.descriptor(""))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	q.register(cmd)
	return cmd
}

func salesCmd(opts *globalOptions) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Read daily sales metrics, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			records, err := client.GetSalesData(ctx, q.descriptor(""))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	q.register(cmd)
	return cmd
}

func itemCmd(opts *globalOptions) *cobra.Command {
	var sel, expand []string
	cmd := &cobra.Command{
		Use:   "item <list> <id>",
		Short: "Read one item by its numeric id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[1])
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			rec, err := client.FetchOne(ctx, args[0], id, listapi.ItemOptions{Select: sel, Expand: expand})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringSliceVar(&sel, "select", nil, "fields to return")
	cmd.Flags().StringSliceVar(&expand, "expand", nil, "lookup fields to expand")
	return cmd
}

type freshness struct {
	List     string    `json:"list"`
	Modified time.Time `json:"modified,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func freshnessCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "freshness [list...]",
		Short: "Show when each list last changed",
		Long:  "Reads list metadata concurrently. Defaults to the task and sales lists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			lists := args
			if len(lists) == 0 {
				cfg := client.Config()
				lists = []string{cfg.Lists.Tasks, cfg.Lists.SalesData}
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			results := make([]freshness, len(lists))
			var g errgroup.Group
			g.SetLimit(4)
			for i, list := range lists {
				g.Go(func() error {
					results[i].List = list
					ts, err := client.DataFreshness(ctx, list)
					if err != nil {
						results[i].Error = err.Error()
						return nil
					}
					results[i].Modified = ts
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, results)
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					fmt.Fprintf(out, "%-28s %s\n", r.List, color.New(color.FgRed).Sprint(r.Error))
					continue
				}
				fmt.Fprintf(out, "%-28s %s\n", r.List, r.Modified.Format(time.RFC3339))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d lists failed", failed, len(results))
			}
			return nil
		},
	}
}

func urlCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url <path>",
		Short: "Print the absolute address of a site-relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.BuildURL(args[0]))
			return nil
		},
	}
}

func getCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "get <path>",
		Short:   "Read any site-relative path or absolute address",
		Example: `  listctl get "/_api/web/lists?$select=Title,ItemCount"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			rec, err := client.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
	return err
}
