package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dmonteiro/curvevault/internal/adapter/httpapi"
	"github.com/dmonteiro/curvevault/internal/adapter/repository/postgres"
	"github.com/dmonteiro/curvevault/internal/adapter/sheets"
	"github.com/dmonteiro/curvevault/internal/usecase/ingest"
	"github.com/dmonteiro/curvevault/internal/usecase/status"
)

const (
	defaultAPIToken = "dev-token"
	defaultHTTPAddr = ":8080"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// 1. Setup Database
	dbConnStr := os.Getenv("DB_CONN_STR")
	if dbConnStr == "" {
		dbConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			envOr("DB_HOST", "localhost"),
			envOr("DB_PORT", "5432"),
			envOr("DB_USER", "postgres"),
			envOr("DB_PASSWORD", "postgres"),
			envOr("DB_NAME", "curvevault"),
		)
	}

	db, err := postgres.NewDB(dbConnStr)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	// 2. Initialize Repositories (Postgres)
	curveRepo := postgres.NewCurveRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// 3. Initialize collaborator + services
	exportURL := os.Getenv("SHEET_EXPORT_URL")
	if exportURL == "" {
		log.Fatal("SHEET_EXPORT_URL must be set")
	}
	sheetClient := sheets.NewClient(exportURL)

	ingestService := ingest.NewService(curveRepo, auditRepo, sheetClient, log)
	statusService := status.NewService(curveRepo, auditRepo)

	// 4. Start HTTP server
	apiToken := envOr("API_TOKEN", defaultAPIToken)
	addr := envOr("HTTP_ADDR", defaultHTTPAddr)

	apiServer := httpapi.NewServer(ingestService, statusService, db, log)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: apiServer.Routes(apiToken),
	}

	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	waitForShutdown(httpServer, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(httpServer *http.Server, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("HTTP server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
