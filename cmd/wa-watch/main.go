package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zulhijaya18/wa-service-api/internal/client"
	"github.com/zulhijaya18/wa-service-api/internal/watch"
)

func main() {
	var baseURL, logFile string

	cmd := &cobra.Command{
		Use:           "wa-watch",
		Short:         "Follow a running wa-service from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The alternate screen owns stdout, so logs go to a file or nowhere.
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			log.Logger = zerolog.New(out).With().Timestamp().Logger()

			ws := client.NewWSClient(client.DeriveWSURL(baseURL))
			defer ws.Close()

			m := watch.New(ws, client.NewHTTPClient(baseURL))
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:3000", "Base URL of the service")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write debug logs to this file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
