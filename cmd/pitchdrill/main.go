// Command pitchdrill runs the sales practice gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pitchdrill/pitchdrill/internal/dotenv"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	gatewayserver "github.com/pitchdrill/pitchdrill/pkg/gateway/server"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildServer  func(context.Context, config.Config, *slog.Logger) (*gatewayserver.Server, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:  config.LoadFromEnv,
		buildServer: buildServer,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildServer assembles the store, providers and verifier behind the
// gateway from config.
func buildServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, func(), error) {
	cleanup := func() {}

	var st store.Store
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, cleanup, fmt.Errorf("migrate: %w", err)
			}
		}
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		st = pg
		cleanup = pg.Close
		logger.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("no database configured, conversations are not durable")
	}

	var chatProvider chat.Provider
	switch cfg.ChatBackend {
	case config.ChatBackendGemini:
		gp, err := chat.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, cleanup, fmt.Errorf("gemini client: %w", err)
		}
		chatProvider = gp
	default:
		var opts []chat.GroqOption
		if cfg.GroqBaseURL != "" {
			opts = append(opts, chat.WithGroqBaseURL(cfg.GroqBaseURL))
		}
		if cfg.ChatModel != "" {
			opts = append(opts, chat.WithGroqModel(cfg.ChatModel))
		}
		chatProvider = chat.NewGroq(cfg.GroqAPIKey, opts...)
	}

	var sttOpts []stt.WhisperOption
	if cfg.WhisperModel != "" {
		sttOpts = append(sttOpts, stt.WithWhisperModel(cfg.WhisperModel))
	}
	sttProvider := stt.NewWhisper(cfg.GroqAPIKey, sttOpts...)
	ttsProvider := tts.NewElevenLabs(cfg.ElevenLabsAPIKey)

	var verifier auth.Verifier
	switch cfg.AuthMode {
	case config.AuthModeStatic:
		principals := make(map[string]auth.Principal, len(cfg.StaticTokens))
		for token, userID := range cfg.StaticTokens {
			principals[token] = auth.Principal{UserID: userID}
		}
		verifier = auth.NewStaticVerifier(principals)
	case config.AuthModeDisabled:
		verifier = auth.AnonymousVerifier{}
	default:
		sv, err := auth.NewSupabaseVerifier(cfg.SupabaseProjectRef, cfg.SupabaseAPIKey)
		if err != nil {
			return nil, cleanup, fmt.Errorf("supabase verifier: %w", err)
		}
		verifier = sv
	}

	srv := gatewayserver.New(cfg, logger, gatewayserver.Dependencies{
		Chat:     chatProvider,
		STT:      sttProvider,
		TTS:      ttsProvider,
		Store:    st,
		Verifier: verifier,
	})
	return srv, cleanup, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildServer == nil {
		return errors.New("missing buildServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, cleanup, err := deps.buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"chat_backend", cfg.ChatBackend)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer drainCancel()
	gw.Drain(drainCtx)

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "pitchdrill: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "pitchdrill: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
