package workers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swapnet/config"
	"swapnet/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(api.Logger))

	r.Options("/*", CORSHeaders)

	r.Get("/health", handlers.HealthCheck)
	r.Get("/state", api.State)
	r.Get("/peers", api.GetPeers)

	r.Route("/swaps", func(r chi.Router) {
		r.Get("/", api.ListSwaps)
		r.Post("/", api.RequestSwap)
		r.Get("/{swapID}", api.GetSwap)
		r.Delete("/{swapID}", api.DeleteSwap)
		r.Post("/{swapID}/winner", api.RecordWinner)
	})

	r.Route("/hotkeys/{account}", func(r chi.Router) {
		r.Get("/", api.GetHotkey)
		r.Put("/", api.StoreHotkey)
		r.Delete("/", api.DeleteHotkey)
	})

	r.Route("/stats/{hotkey}", func(r chi.Router) {
		r.Get("/", api.GetHotkeyStats)
		r.Get("/{field}", api.GetTotalStat)
		r.Get("/{field}/weekly", api.GetWeeklyStat)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// Worker_HTTP serves the API until SIGINT/SIGTERM, then shuts down gracefully.
func Worker_HTTP(cfg *config.Configuration, handler http.Handler, logger *zap.Logger) error {
	logger.Info("starting HTTP service")

	var server *http.Server

	if cfg.Server.UseSSL {
		cert, err := tls.LoadX509KeyPair("certchain.pem", "privatekey.pem")
		if err != nil {
			return fmt.Errorf("cannot load TLS key pair: %w", err)
		}
		server = &http.Server{
			Addr:    ":443",
			Handler: handler,
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	} else {
		server = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: handler,
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	failed := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.UseSSL {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			failed <- err
		}
	}()
	logger.Info("HTTP service started", zap.String("addr", server.Addr))

	select {
	case <-done:
		logger.Info("HTTP service stopped")
	case err := <-failed:
		return fmt.Errorf("error listening to %s: %w", server.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP service shutdown error: %w", err)
	}
	logger.Info("HTTP service shutdown normal")
	return nil
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, X-Requested-With")
}
