package main

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
	"MiniCart/internal/storage"
	"MiniCart/internal/storefront"
	"MiniCart/pkg/kit"
)

func main() {
	kit.LoadDotEnv(".env")

	service := "storefront"
	log := kit.NewLogger(service, kit.Getenv("LOG_LEVEL", "info"))
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8080")
	ctx := context.Background()

	var cleanup []func()

	backend, closeBackend := openBackend(log)
	if closeBackend != nil {
		cleanup = append(cleanup, closeBackend)
	}
	c := cart.New(ctx, backend, log.Named("cart"))

	var src catalog.Source
	if url := kit.Getenv("CATALOG_URL", ""); url != "" {
		remote := catalog.NewRemoteSource(catalog.NewClient(url, log.Named("catalog")), log.Named("catalog"))
		remote.Start(ctx)
		cleanup = append([]func(){remote.Close}, cleanup...)
		src = remote
	} else {
		src = catalog.NewStaticSource()
		log.Info("serving bundled catalog")
	}

	limit, err := strconv.Atoi(kit.Getenv("CART_RATE_LIMIT", "120"))
	if err != nil {
		log.Fatal("CART_RATE_LIMIT must be an integer", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	h := storefront.NewHandler(&storefront.Server{Cart: c, Catalog: src, Log: log}, storefront.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   kit.Getenv("METRICS_TOKEN", ""),
		MutationLimit:  limit,
	})

	if err := kit.RunHTTPServer(":"+port, h, log, cleanup...); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// openBackend picks the cart storage. Any failure leaves the cart in memory
// only; losing persistence is never fatal.
func openBackend(log *zap.Logger) (storage.Backend, func()) {
	switch kind := kit.Getenv("CART_STORE", "file"); kind {
	case "memory":
		return storage.NewMemStore(), nil

	case "postgres":
		db, err := sql.Open("pgx", kit.Getenv("DATABASE_URL", ""))
		if err != nil {
			log.Warn("cart storage unavailable, keeping cart in memory", zap.Error(err))
			return nil, nil
		}
		return storage.NewPostgresStore(db), func() { _ = db.Close() }

	case "file":
		fs, err := storage.NewFileStore(kit.Getenv("CART_DIR", "data"))
		if err != nil {
			log.Warn("cart storage unavailable, keeping cart in memory", zap.Error(err))
			return nil, nil
		}
		return fs, nil

	default:
		log.Warn("unknown CART_STORE, keeping cart in memory", zap.String("store", kind))
		return nil, nil
	}
}
