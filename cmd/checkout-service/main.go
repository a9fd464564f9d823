package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dokanify/checkout-core/internal/cart"
	"github.com/dokanify/checkout-core/internal/catalog"
	"github.com/dokanify/checkout-core/internal/config"
	"github.com/dokanify/checkout-core/internal/coupon"
	"github.com/dokanify/checkout-core/internal/events"
	"github.com/dokanify/checkout-core/internal/httpx"
	"github.com/dokanify/checkout-core/internal/metrics"
	"github.com/dokanify/checkout-core/internal/order"
	"github.com/dokanify/checkout-core/internal/shipping"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer pool.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	catalogRepo := catalog.NewPGRepo(pool)
	cartSvc := cart.NewService(cart.NewPGRepo(pool), catalogRepo, logger)
	orderRepo := order.NewPGRepo(pool)
	resolver := shipping.NewResolver(shipping.NewPGConfigStore(pool))
	ledger := coupon.NewPGLedger(pool)
	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	if !publisher.Enabled() {
		logger.Info("order event publishing disabled: no kafka brokers configured")
	}
	assembler := order.NewAssembler(orderRepo, catalogRepo, resolver, ledger, publisher, m, logger)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(logger), httpx.Metrics(m))

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/carts", getCartHandler(cartSvc))
	r.POST("/carts/items", addCartItemHandler(cartSvc))
	r.PUT("/carts/items/:id", updateCartItemHandler(cartSvc))
	r.DELETE("/carts/items/:id", removeCartItemHandler(cartSvc))
	r.DELETE("/carts", clearCartHandler(cartSvc))
	r.POST("/carts/merge", mergeCartHandler(cartSvc))

	r.POST("/orders", createOrderHandler(assembler))
	r.GET("/orders/:id", getOrderHandler(orderRepo))
	r.GET("/orders/:id/items", getOrderItemsHandler(orderRepo))
	r.GET("/orders/user/:user_id", listOrdersByUserHandler(orderRepo))
	r.POST("/orders/:id/coupon", attachCouponHandler(assembler))
	r.PUT("/orders/:id/shipping-address", attachShippingHandler(assembler))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(assembler))

	logger.Info("checkout-service listening", zap.String("addr", cfg.CheckoutSvcAddr))
	if err := r.Run(cfg.CheckoutSvcAddr); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
