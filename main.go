package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	appOrder "github.com/zenshop/orderengine/internal/application/order"
	appPayment "github.com/zenshop/orderengine/internal/application/payment"
	appShipment "github.com/zenshop/orderengine/internal/application/shipment"
	"github.com/zenshop/orderengine/internal/domain/catalog"
	"github.com/zenshop/orderengine/internal/infrastructure/id"
	"github.com/zenshop/orderengine/internal/infrastructure/memory"
	"github.com/zenshop/orderengine/internal/infrastructure/notification"
	infraobs "github.com/zenshop/orderengine/internal/infrastructure/observability"
	"github.com/zenshop/orderengine/internal/infrastructure/observability/oteltrace"
	"github.com/zenshop/orderengine/internal/infrastructure/observability/prometrics"
	"github.com/zenshop/orderengine/internal/infrastructure/observability/zaplogger"
	"github.com/zenshop/orderengine/internal/infrastructure/outbox"
	"github.com/zenshop/orderengine/internal/observability"
	httppresentation "github.com/zenshop/orderengine/internal/presentation/http"
)

func main() {
	_ = godotenv.Load()

	serviceName := getenvDefault("SERVICE_NAME", "orderengine")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("HTTP_ADDR", ":8080")

	baseLogger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)

	registry := prometrics.New("")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MEventPublishFailed: registry.Counter(
			string(observability.MEventPublishFailed),
			"Count of event publish failures.",
			"event",
		),
		observability.MNotificationsSent: registry.Counter(
			string(observability.MNotificationsSent),
			"Count of customer notifications sent.",
			"status",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			nil,
			"method", "route", "status",
		),
	}

	tel := infraobs.New(oteltrace.New(serviceName), baseLogger, counters, histograms)
	log := tel.Logger().With(observability.F("component", "main"))

	catalogRepo := memory.NewCatalogRepository()
	orderRepo := memory.NewOrderRepository()
	ledgerRepo := memory.NewLedgerRepository()
	shipmentRepo := memory.NewShipmentRepository()
	idGenerator := id.NewUUIDGenerator()

	if getenvDefault("SEED_CATALOG", "true") == "true" {
		seedCatalog(context.Background(), catalogRepo, idGenerator, tel)
	}

	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	notifier := notification.NewNotifier(tel)
	notifier.Register(bus)

	orderService := appOrder.NewService(orderRepo, catalogRepo, idGenerator, tel)
	paymentService := appPayment.NewService(ledgerRepo, orderRepo, idGenerator, tel)
	shipmentService := appShipment.NewService(shipmentRepo, orderRepo, bus, idGenerator, tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := appShipment.NewSweeper(
		shipmentRepo,
		getenvDuration("SHIPMENT_DELAY_THRESHOLD", 24*time.Hour),
		getenvDuration("SHIPMENT_SWEEP_INTERVAL", time.Hour),
		tel,
	)
	go sweeper.Run(ctx)

	handler := httppresentation.NewHandler(orderService, paymentService, shipmentService, catalogRepo, tel)
	server := &http.Server{
		Addr:    addr,
		Handler: handler.Router(prometheus.DefaultGatherer),
	}

	go func() {
		log.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		log.Info("http_server_stopped")
	}
}

// seedCatalog loads a small fixture set so the engine is usable out of the box.
func seedCatalog(ctx context.Context, repo catalog.Repository, idGen appOrder.IDGenerator, tel observability.Observability) {
	log := tel.Logger().With(observability.F("component", "seed"))
	fixtures := []struct {
		name  string
		price string
		stock int
	}{
		{"Laptop Pro 15", "1299.99", 25},
		{"Wireless Mouse", "29.99", 200},
		{"Mechanical Keyboard", "89.99", 120},
		{"USB-C Hub", "49.99", 80},
		{"4K Monitor", "399.99", 40},
	}
	for _, f := range fixtures {
		price, err := decimal.NewFromString(f.price)
		if err != nil {
			continue
		}
		p, err := catalog.NewProduct(idGen.NewID(), f.name, price, f.stock, true)
		if err != nil {
			log.Warn("seed_product_invalid", observability.F("name", f.name), observability.F("error", err.Error()))
			continue
		}
		if err := repo.Save(ctx, p); err != nil {
			log.Warn("seed_product_failed", observability.F("name", f.name), observability.F("error", err.Error()))
			continue
		}
	}
	log.Info("catalog_seeded", observability.F("products", len(fixtures)))
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
