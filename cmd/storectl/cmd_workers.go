package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"storefront/internal/model"

	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Send admin alerts",
}

var (
	alertTitle   string
	alertMessage string
)

// storectl alerts broadcast --title --message
var alertsBroadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Queue a push notification to every registered device",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Config.Jobs.Driver != "redis" {
			return fmt.Errorf("broadcast from the CLI needs JOBS_DRIVER=redis so API workers can deliver it")
		}

		resp, err := a.Services.Notifications.Broadcast(cmd.Context(), &model.BroadcastRequest{
			Title:   alertTitle,
			Message: alertMessage,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alert %d queued for %d devices\n", resp.AlertID, resp.Queued)
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background job workers",
}

var jobWorkers int

// storectl jobs work
var jobsWorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Process queued notification jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Config.Jobs.Driver != "redis" {
			return fmt.Errorf("standalone workers need JOBS_DRIVER=redis")
		}

		workers := jobWorkers
		if workers < 1 {
			workers = a.Config.Jobs.Workers
		}

		a.Queue.Run(ctx, workers)

		for _, f := range a.Queue.FailedJobs() {
			a.Logger.Warn().Str("job_type", f.Type).Err(f.Err).Int("attempts", f.Attempts).Msg("job failed permanently")
		}
		return nil
	},
}

func init() {
	alertsCmd.AddCommand(alertsBroadcastCmd)
	alertsBroadcastCmd.Flags().StringVar(&alertTitle, "title", "", "Notification title")
	alertsBroadcastCmd.Flags().StringVar(&alertMessage, "message", "", "Notification body")
	_ = alertsBroadcastCmd.MarkFlagRequired("title")
	_ = alertsBroadcastCmd.MarkFlagRequired("message")

	jobsCmd.AddCommand(jobsWorkCmd)
	jobsWorkCmd.Flags().IntVarP(&jobWorkers, "workers", "w", 0, "Number of concurrent workers (defaults to JOBS_WORKERS)")
}
