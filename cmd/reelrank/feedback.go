package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelrank/reelrank/internal/feedback"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record downvotes, skipped genres and hidden titles",
	}

	var inbox string
	ingest := &cobra.Command{
		Use:   "ingest [message...]",
		Short: "Ingest feedback from arguments or an inbox file",
		Example: `  reelrank feedback ingest "downvote Some Title"
  reelrank feedback ingest "skip genre: horror" "hide: tt0111161"
  reelrank feedback ingest --inbox ./data/inbox.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var msgs []feedback.Message
			if inbox != "" {
				msgs, err = feedback.LoadInbox(inbox, a.log.Logger)
				if err != nil {
					return err
				}
			}
			if len(args) > 0 {
				msgs = append(msgs, feedback.Message{Body: strings.Join(args, "\n")})
			}
			if len(msgs) == 0 {
				return errors.New("nothing to ingest: pass messages or --inbox")
			}

			report, err := a.svc.IngestFeedback(cmd.Context(), msgs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d messages: %d downvotes, %d genres, %d hidden\n",
				report.Messages, report.Downvotes, report.Genres, report.Hidden)
			return nil
		},
	}
	ingest.Flags().StringVar(&inbox, "inbox", "", "JSON-lines inbox file to ingest")
	cmd.AddCommand(ingest)
	return cmd
}
