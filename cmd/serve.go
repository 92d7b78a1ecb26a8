package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/sample"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve yield and histogram queries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAnalysis(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := newRouter(env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      r,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *analysisEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/yield", func(w http.ResponseWriter, req *http.Request) {
		q, opt, ok := queryContext(env, w, req)
		if !ok {
			return
		}
		y, err := q.GetYield(req.Context(), opt)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"target": q.Name(), "yield": y.Value, "uncertainty": y.Error,
		})
	})

	r.Get("/v1/histogram", func(w http.ResponseWriter, req *http.Request) {
		q, opt, ok := queryContext(env, w, req)
		if !ok {
			return
		}
		v, err := parseVariable(req.URL.Query().Get("var"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h, err := q.GetHistogram(req.Context(), v, opt)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if h == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
			return
		}
		writeJSON(w, http.StatusOK, h)
	})

	return r
}

// queryContext resolves the target and common query options from the URL.
func queryContext(env *analysisEnv, w http.ResponseWriter, req *http.Request) (sample.Queryable, sample.Options, bool) {
	q, err := env.target(req.URL.Query().Get("target"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, sample.Options{}, false
	}
	opt := sample.Options{
		Cut:        cut.New(req.URL.Query().Get("cut")),
		Luminosity: cfg.Analysis.Luminosity,
	}
	if l := req.URL.Query().Get("luminosity"); l != "" {
		lumi, err := strconv.ParseFloat(l, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad luminosity"})
			return nil, sample.Options{}, false
		}
		opt.Luminosity = lumi
	}
	return q, opt, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload) //nolint:errcheck
}

// requestID tags every request with a correlation ID for log grepping.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		zap.L().Debug("request",
			zap.String("id", id),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path))
		next.ServeHTTP(w, req)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
