package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/config"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/httpapi"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/hub"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/lobby"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080, or :$PORT)")
	serveCmd.Flags().String("database-url", "", "postgres DSN; in-memory stats when empty")
	serveCmd.Flags().String("public-url", "", "base URL used in join links and QR codes")
	_ = v.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("database_url", serveCmd.Flags().Lookup("database-url"))
	_ = v.BindPFlag("public_url", serveCmd.Flags().Lookup("public-url"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	board, err := cfg.Board()
	if err != nil {
		log.Error("board config rejected", zap.String("board_file", cfg.BoardFile), zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	h := hub.NewHub(ctx, lobby.Config{
		Board:       board,
		Rules:       cfg.Rules(),
		Delays:      cfg.Delays(),
		MaxRolls:    cfg.Bot.MaxRolls,
		Dice:        engine.RandomDice{},
		AutoEndTurn: cfg.AutoEndTurn,
		Recorder:    st,
		Logger:      log,
		IdleTimeout: cfg.LobbyIdleTimeout,
	})

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:         h,
			Leaderboard: st,
			PublicURL:   cfg.PublicURL,
			Logger:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no database configured, keeping stats in memory")
		return store.NewMemoryStore(), nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	st, err := store.OpenPostgres(openCtx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", zap.Error(err))
		return nil, err
	}
	return st, nil
}
