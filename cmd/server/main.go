package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/groupcall/internal/adapters/http"
	"github.com/dkeye/groupcall/internal/adapters/kurento"
	"github.com/dkeye/groupcall/internal/adapters/memory"
	"github.com/dkeye/groupcall/internal/adapters/rtc"
	"github.com/dkeye/groupcall/internal/adapters/signal"
	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/app/orch"
	"github.com/dkeye/groupcall/internal/config"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "groupcall",
		Short:        "Group video call signaling server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Initialize zerolog global logger early so config.Load can use it.
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				log.Error().Err(err).Msg("failed to load config")
				return err
			}
			setupLogging(cfg)
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml)")
	flags.Int("port", 8443, "HTTP listen port")
	flags.String("engine", config.EngineKurento, "media engine: kurento, pion or memory")
	flags.String("kurento-url", "ws://localhost:8888/kurento", "Kurento media server websocket URL")
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("media.engine", flags.Lookup("engine"))
	_ = v.BindPFlag("media.kurento_url", flags.Lookup("kurento-url"))
	return cmd
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func newMediaEngine(cfg *config.Config) (core.MediaEngine, error) {
	switch cfg.Media.Engine {
	case config.EngineKurento:
		return kurento.NewEngine(cfg.Media.KurentoURL, cfg.Media.KurentoPing), nil
	case config.EnginePion:
		return rtc.NewEngine(rtc.Options{
			ICEServers: cfg.Media.ICEServers,
			UDPPortMin: cfg.Media.UDPPortMin,
			UDPPortMax: cfg.Media.UDPPortMax,
		})
	case config.EngineMemory:
		return memory.NewEngine(), nil
	}
	return nil, fmt.Errorf("unknown media engine %q", cfg.Media.Engine)
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := ossignal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine, err := newMediaEngine(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	o := &orch.Orchestrator{
		Registry:    app.NewRegistry(),
		Rooms:       app.NewRoomManager(engine, m),
		Policy:      app.SimplePolicy{},
		Bandwidth:   orch.Bandwidth{MaxRecvKbps: cfg.Media.MaxRecvBandwidth, MinRecvKbps: cfg.Media.MinRecvBandwidth},
		CallTimeout: cfg.Media.CallTimeout,
		Metrics:     m,
	}
	ctl := signal.NewSignalWSController(o, signal.NewJoinLimiter(cfg.JoinRate, cfg.JoinBurst), m, signal.Settings{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Signal: ctl, Gatherer: reg})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", addr).
			Str("engine", cfg.Media.Engine).
			Bool("tls", cfg.TLS.Enabled()).
			Msg("groupcall server started")
		var err error
		if cfg.TLS.Enabled() {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := engine.Close(); err != nil {
			log.Error().Err(err).Msg("media engine close")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited gracefully")
	return err
}
