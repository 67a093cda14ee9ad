package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zulhijaya18/wa-service-api/internal/backend"
	"github.com/zulhijaya18/wa-service-api/internal/backend/bridge"
	"github.com/zulhijaya18/wa-service-api/internal/backend/mock"
	"github.com/zulhijaya18/wa-service-api/internal/config"
	"github.com/zulhijaya18/wa-service-api/internal/dispatch"
	"github.com/zulhijaya18/wa-service-api/internal/frontend"
	"github.com/zulhijaya18/wa-service-api/internal/pairing"
	"github.com/zulhijaya18/wa-service-api/internal/phone"
	"github.com/zulhijaya18/wa-service-api/internal/session"
	"github.com/zulhijaya18/wa-service-api/internal/supervisor"
	"github.com/zulhijaya18/wa-service-api/internal/ws"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	port       int
	mock       bool
	noRealtime bool
	backendURL string
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and keep the WhatsApp session alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Override server port")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "Use the scripted mock backend")
	cmd.Flags().BoolVar(&opts.noRealtime, "no-realtime", false, "Disable the websocket channel and pairing page")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", "", "Public URL the pairing page connects to")
	return cmd
}

func loadConfig(opts *serveOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.mock {
		cfg.Backend.Kind = config.BackendMock
	}
	if opts.noRealtime {
		cfg.Server.Realtime = false
	}
	if opts.backendURL != "" {
		cfg.Server.BackendURL = opts.backendURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func newBackend(cfg *config.Config) backend.Client {
	if cfg.BackendKind() == config.BackendMock {
		if cfg.Backend.Kind == "" {
			log.Warn().Msg("No bridge command configured, falling back to the mock backend; messages are not delivered")
		}
		log.Info().Msg("Starting with mock backend")
		return mock.New(mock.Config{
			PairingDelay:    cfg.Mock.PairingDelay,
			PairingRefresh:  cfg.Mock.PairingRefresh,
			AuthDelay:       cfg.Mock.AuthDelay,
			ReadyDelay:      cfg.Mock.ReadyDelay,
			DisconnectAfter: cfg.Mock.DisconnectAfter,
			RestoredSession: cfg.Mock.RestoredSession,
		})
	}
	log.Info().Str("command", cfg.Backend.Command).Msg("Starting with bridge backend")
	return bridge.New(bridge.Config{
		Command: cfg.Backend.Command,
		Args:    cfg.Backend.Args,
		Dir:     cfg.Backend.Dir,
		Env:     cfg.Backend.Env,
	})
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	machine := session.NewMachine()
	client := newBackend(cfg)
	sup := supervisor.New(client, machine, supervisor.Options{
		BaseDelay: cfg.Supervisor.BaseDelay,
		MaxDelay:  cfg.Supervisor.MaxDelay,
	})
	dispatcher := dispatch.New(machine, client, phone.NewNormalizer(cfg.Phone.CountryCode, cfg.Phone.Suffix), dispatch.Options{
		MaxInFlight: cfg.Dispatch.MaxInFlight,
		SendTimeout: cfg.Dispatch.SendTimeout,
	})

	var broadcaster *ws.Broadcaster
	var page http.Handler
	if cfg.Server.Realtime {
		broadcaster = ws.NewBroadcaster(machine, cfg.Broadcast.Buffer)
		machine.Observe(broadcaster)
		page = frontend.Handler(cfg.Server.BackendURL)
	}
	if cfg.Pairing.PrintTerminal {
		machine.Observe(pairing.NewPrinter(os.Stdout))
	}

	server := ws.NewServer(machine, dispatcher, broadcaster, page, cfg.Server.CORSOrigins)
	httpServer := &http.Server{
		Addr:              ws.Addr(cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopSignals := handleSupervisorSignals(ctx, sup)
	defer stopSignals()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Bool("realtime", server.Realtime()).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
