package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulhijaya18/wa-service-api/internal/client"
)

const requestTimeout = 30 * time.Second

func newStatusCommand() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a running service is ready to send",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			c := client.NewHTTPClient(baseURL)
			status, err := c.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.Message)
			if health, err := c.Health(ctx); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "state=%s realtime=%t subscribers=%d uptime=%s\n",
					health.State, health.Realtime, health.Subscribers, health.Uptime)
			}
			if !status.Status {
				return fmt.Errorf("service is not ready")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:3000", "Base URL of the service")
	return cmd
}

func newSendCommand() *cobra.Command {
	var baseURL, number, message string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a text message through a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			resp, err := client.NewHTTPClient(baseURL).Send(ctx, number, message)
			if err != nil {
				if resp != nil && resp.Message != "" {
					return fmt.Errorf("%s", strings.TrimSpace(resp.Message+" "+resp.Error))
				}
				return err
			}
			if resp.Data == nil {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: id=%s to=%s\n", resp.Message, resp.Data.MessageID, resp.Data.FormattedNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:3000", "Base URL of the service")
	cmd.Flags().StringVar(&number, "number", "", "Recipient phone number")
	cmd.Flags().StringVar(&message, "message", "", "Message text")
	cmd.MarkFlagRequired("number")
	cmd.MarkFlagRequired("message")
	return cmd
}
