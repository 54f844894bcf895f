package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/bot"
	"github.com/PettyMiggzy/ChopstixBNB/internal/config"
	"github.com/PettyMiggzy/ChopstixBNB/internal/scheduler"
	"github.com/PettyMiggzy/ChopstixBNB/internal/store"
	"github.com/PettyMiggzy/ChopstixBNB/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	st, err := store.Open(cfg.StatePath, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open state store", zap.Error(err))
	}

	b, err := bot.NewBot(cfg, st, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create bot", zap.Error(err))
	}

	sched := scheduler.New(st, b.Broadcaster(), b.Boards, cfg.GroupID, cfg.SummaryHour, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Start(ctx)
	})

	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	// Keep-alive listener for hosting platforms that ping the process.
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zapLogger.Info("keep-alive listener started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("service stopped with error", zap.Error(err))
	}

	if err := st.Flush(); err != nil {
		zapLogger.Error("final state flush failed", zap.Error(err))
	} else {
		zapLogger.Info("state flushed, shutting down")
	}
}
