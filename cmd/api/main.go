package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"keyflow/pkg/fulfill"
	"keyflow/pkg/inventory"
	invredis "keyflow/pkg/inventory/redis"
	"keyflow/pkg/keygen"
	"keyflow/pkg/logger"
	"keyflow/pkg/metrics"
	"keyflow/pkg/notify"
	"keyflow/pkg/order"
	pg "keyflow/pkg/order/postgres"
	"keyflow/pkg/otel"
	"keyflow/pkg/payment"
	"keyflow/pkg/product"
)

const keyPrefix = "SHADOW"

var (
	log         *logger.Logger
	tracer      trace.Tracer
	catalog     product.Catalog
	inv         inventory.Store
	orders      order.Repository
	oracle      payment.Oracle
	coordinator *fulfill.Coordinator
	adminSecret string
	seedCounts  map[string]int
)

// @title Keyflow API
// @version 1.0
// @description License key sales and fulfillment
// @host localhost:8443
// @BasePath /
func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log = logger.New(logger.MultiWriter(cfg.LogFile), logger.LevelInfo, "keyflow", otel.GetTraceID)
	ctx := context.Background()

	tp, shutdown, err := otel.InitTracing(log, otel.Config{
		ServiceName: "keyflow",
		Host:        cfg.OtelHost,
		Probability: 1.0,
	})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(ctx)
	tracer = tp.Tracer("keyflow")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "db connect", "error", err)
		os.Exit(1)
	}
	pgRepo := pg.New(db)
	if err := pgRepo.Migrate(ctx); err != nil {
		log.Error(ctx, "db migrate", "error", err)
		os.Exit(1)
	}
	orders = pgRepo

	catalog = product.Default()
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	inv = invredis.New(rdb, catalog.IDs())

	oracle = payment.NewHTTP(cfg.PaymentURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.EmailEndpoint != "" {
		notifier = notify.NewMailer(cfg.EmailEndpoint, cfg.EmailAPIKey, cfg.EmailFrom, cfg.OperatorEmail, log)
	}

	coordinator = fulfill.New(inv, orders, oracle, notifier, log)
	adminSecret = cfg.SeedSecret
	seedCounts = map[string]int{
		product.Weekly:   cfg.SeedWeekly,
		product.Monthly:  cfg.SeedMonthly,
		product.Lifetime: cfg.SeedLifetime,
	}

	seeded, err := inv.EnsureSeeded(ctx, seedEntries(seedCounts))
	if err != nil {
		log.Error(ctx, "seeding", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "seeding", "ran", seeded)

	r := newRouter()
	log.Info(ctx, "listening", "addr", cfg.Addr)
	if cfg.CertFile != "" {
		err = http.ListenAndServeTLS(cfg.Addr, cfg.CertFile, cfg.KeyFile, r)
	} else {
		err = http.ListenAndServe(cfg.Addr, r)
	}
	log.Error(ctx, "server closed", "error", err)
}

// seedEntries generates fresh tokens for each product's configured
// count, in catalog order.
func seedEntries(counts map[string]int) []inventory.Entry {
	var entries []inventory.Entry
	for _, p := range catalog {
		for _, key := range keygen.Batch(keyPrefix, counts[p.ID]) {
			entries = append(entries, inventory.Entry{ProductID: p.ID, Key: key})
		}
	}
	return entries
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(traceMiddleware, metrics.Middleware)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/checkout", checkoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/stock", stockHandler).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", getOrderHandler).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/fulfill", fulfillHandler).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuthMiddleware)
	admin.HandleFunc("/seed", seedHandler).Methods(http.MethodPost)
	admin.HandleFunc("/restock", restockHandler).Methods(http.MethodPost)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}
