package main

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"medical-review-assistant/internal/agent"
	"medical-review-assistant/internal/config"
	"medical-review-assistant/internal/consultation"
	"medical-review-assistant/internal/evidence"
	"medical-review-assistant/internal/platform/logging"
	"medical-review-assistant/internal/platform/telegram"
	"medical-review-assistant/internal/report"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	// 1. Infrastructure
	db, err := connectDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	defer db.Close()
	log.Info("connected to database")

	if err := runMigrations(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	log.Info("migrations applied")

	// 2. Clients
	aiClient := agent.NewDeepSeekClient(agent.Config{
		APIKey:  cfg.DeepSeekAPIKey,
		BaseURL: cfg.DeepSeekURL,
		Model:   cfg.DeepSeekModel,
		Timeout: cfg.LLMTimeout,
	}, log)
	sttClient := agent.NewWhisperClient(cfg.STTURL)
	tgClient := telegram.NewClient(cfg.TelegramToken)

	if cfg.DeepSeekAPIKey == "" {
		log.Warn("DEEPSEEK_API_KEY is not set, generation will fail")
	}
	if cfg.DoctorChatID == 0 {
		log.Warn("DOCTOR_CHAT_ID is not set or invalid, reports will not be sent")
	}

	// 3. Services
	repo := consultation.NewRepository(db)
	evidenceSvc := evidence.NewService(aiClient, log)
	reportSvc := report.NewService(tgClient, cfg.DoctorChatID, log)
	sessions := consultation.NewSessions(log)
	consultationSvc := consultation.NewService(repo, aiClient, evidenceSvc, sttClient, reportSvc, sessions, log)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors(cfg.CORSOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		consultation.RegisterRoutes(r, consultation.NewHandler(consultationSvc, log))
		evidence.RegisterRoutes(r, evidence.NewHandler(evidenceSvc))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("port", cfg.Port).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}

// connectDB retries while the database container starts up.
func connectDB(dsn string, log *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		log.Infof("waiting for DB... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}
	db.Close()
	return nil, err
}

func runMigrations(source, dsn string) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
