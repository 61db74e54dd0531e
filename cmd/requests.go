package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esgportal/apiserver/internal/mq"
	"github.com/esgportal/apiserver/types"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Work with report access requests",
}

var requestsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log access requests as they are published",
	Long: `Subscribes to the access request channel and logs each request so
operators can follow up. Runs until interrupted. Usage:

	esgportal requests watch
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, ctx := setup(cmd.Context())
		if mq.InProcess(cfg.MQ.Backend) {
			return fmt.Errorf("mq backend %q is in-process and cannot deliver requests published by the server; set MQ_BACKEND to rabbitmq or pubsub", cfg.MQ.Backend)
		}

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer queue.Close()

		log.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.RequestsChannel).Msg("watching access requests")
		err = queue.Subscribe(ctx, cfg.MQ.RequestsChannel, func(ctx context.Context, msg mq.Message) error {
			var event types.AccessRequestEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable access request")
				return nil
			}
			log.Info().
				Str("correlation_id", event.CorrelationID).
				Int64("request_id", event.RequestID).
				Str("username", event.Username).
				Str("isin", event.ISIN).
				Str("company", event.CompanyName).
				Str("notes", event.Note).
				Time("submitted_at", event.CreatedAt).
				Msg("access request")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsWatchCmd)
}
