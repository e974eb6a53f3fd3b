package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reelrank/reelrank/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var asJSON, shortlist bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rank the current candidate batch once and write the output file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			items := res.Items
			if shortlist {
				items = res.Shortlist
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			return printItems(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print items as JSON")
	cmd.Flags().BoolVar(&shortlist, "shortlist", false, "print the whole shortlist instead of the shown items")
	return cmd
}

func printItems(out io.Writer, items []pipeline.OutputItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "No recommendations.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMATCH\tTITLE\tYEAR\tKIND\tWHY")
	for i := range items {
		it := &items[i]
		year := ""
		if it.Year > 0 {
			year = fmt.Sprint(it.Year)
		}
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%s\t%s\t%s\n", it.Rank, it.Match, it.Title, year, it.Kind, it.Why)
	}
	return tw.Flush()
}
