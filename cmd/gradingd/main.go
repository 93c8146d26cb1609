package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/rubricscore/internal/api/http"
	"github.com/mind-engage/rubricscore/internal/config"
	"github.com/mind-engage/rubricscore/internal/db"
	"github.com/mind-engage/rubricscore/internal/grading"
	"github.com/mind-engage/rubricscore/internal/logging"
	"github.com/mind-engage/rubricscore/internal/nli"
	"github.com/mind-engage/rubricscore/internal/results"
	"github.com/mind-engage/rubricscore/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed: %v", err)
	}
	store := results.NewSQLStore(dbh, db.SQLName(db.Driver(cfg.DBDriver)))

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		logger.Fatal("blob store: %v", err)
	}

	// --- Model (loaded once, in the background) ---
	model := nli.NewLazy(nli.SidecarLoader(nli.SidecarConfig{
		Python:    cfg.NLIPython,
		ScriptDir: cfg.NLIScriptDir,
		ModelName: cfg.ModelName,
		ModelPath: cfg.ModelPath,
		MaxLength: cfg.MaxLength,
	}, logger))
	go func() {
		loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := model.Get(loadCtx); err != nil {
			logger.Error("%v", err)
		}
	}()

	engine, err := grading.NewEngine(model, cfg.EngineOptions(logger)...)
	if err != nil {
		logger.Fatal("engine: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	// Long documents are chunked and each chunk is a model call.
	r.With(middleware.Timeout(5*time.Minute)).
		Post("/grade", api.GradeHandler(engine, store, bs))

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(30 * time.Second))
		gr.Post("/rubrics/validate", api.ValidateRubricHandler())
		gr.Get("/evaluations/{id}", api.GetEvaluationHandler(store))
		gr.Route("/documents", func(dr chi.Router) {
			api.MountDocuments(dr, bs)
		})
	})

	r.Get("/healthz", api.HealthHandler())
	r.Get("/readyz", api.ReadyHandler(dbh.PingContext, func(context.Context) error { return model.Ready() }))

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening on %s (db=%s, model=%s, lang=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.ModelName, cfg.HypothesisLang)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		model.Close()
		dbh.Close()
		logger.Fatal("%v", err)
	case <-stop.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
	if err := model.Close(); err != nil {
		logger.Error("nli worker: %v", err)
	}
	if err := dbh.Close(); err != nil {
		logger.Error("db close: %v", err)
	}
}
