package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Inspect and tune scoring weights",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tune",
		Short: "Nudge audience and critic weights from the rating history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			w, report, err := a.svc.TuneWeights(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.Rated == 0 {
				fmt.Fprintln(out, "No rated history; weights unchanged")
			} else {
				fmt.Fprintf(out, "Rated %d (%d high, %d low), delta %+.3f\n",
					report.Rated, report.Positive, report.Negative, report.Delta)
			}
			fmt.Fprintf(out, "critic_weight=%.3f audience_weight=%.3f commitment_cost_scale=%.3f novelty_pressure=%.3f\n",
				w.CriticWeight, w.AudienceWeight, w.CommitmentCostScale, w.NoveltyPressure)
			return nil
		},
	})
	return cmd
}
