package main

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MiniCart/internal/catalog"
	"MiniCart/pkg/kit"
)

func main() {
	kit.LoadDotEnv(".env")

	service := "catalog"
	log := kit.NewLogger(service, kit.Getenv("LOG_LEVEL", "info"))
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8082")

	var (
		store   catalog.Store = catalog.NewMemStore()
		cleanup []func()
	)
	if dsn := kit.Getenv("DATABASE_URL", ""); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		store = catalog.NewPostgresStore(db)
		cleanup = append(cleanup, func() { _ = db.Close() })
		log.Info("catalog backed by postgres")
	}

	reg := prometheus.NewRegistry()
	h := catalog.NewHandler(&catalog.Server{Store: store, Log: log}, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   kit.Getenv("METRICS_TOKEN", ""),
	})

	if err := kit.RunHTTPServer(":"+port, h, log, cleanup...); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
