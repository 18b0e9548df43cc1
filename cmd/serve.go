package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/controller"
	checkoutgrpc "github.com/vibast-solutions/ms-go-amazon-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/repository"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/service"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/types"
	"github.com/vibast-solutions/ms-go-amazon-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) checkout API and the gRPC health server.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, db, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	healthServer := checkoutgrpc.NewHealthServer(cfg.App.ServiceName, db)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(checkoutController, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, healthServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	checkoutController *controller.CheckoutController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", checkoutController.Health)

	checkout := e.Group("/checkout", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))
	checkout.POST("/sessions", checkoutController.LinkAgreement)
	checkout.GET("/sessions", checkoutController.ListSessions)
	checkout.GET("/sessions/:token", checkoutController.GetSession)
	checkout.GET("/sessions/:token/widget", checkoutController.WidgetContext)
	checkout.POST("/sessions/:token/shipping", checkoutController.ResolveShipping)
	checkout.POST("/sessions/:token/payment", checkoutController.SubmitPaymentDetails)
	checkout.POST("/sessions/:token/order", checkoutController.PlaceOrder)
	checkout.POST("/sessions/:token/one-step-order", checkoutController.PlaceOneStepOrder)
	checkout.POST("/widget-errors", checkoutController.ReportWidgetError)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	healthServer *checkoutgrpc.HealthServer,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			checkoutgrpc.RecoveryInterceptor(),
			checkoutgrpc.RequestIDInterceptor(),
			checkoutgrpc.LoggingInterceptor(),
			skipHealth(internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName)),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	return grpcSrv, lis
}

// skipHealth lets orchestrator probes through without internal credentials.
func skipHealth(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		return next(ctx, req, info, handler)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func newAmazonClient(cfg *config.Config) *provider.Client {
	return provider.NewClient(provider.ClientConfig{
		Credentials: provider.Credentials{
			AccessKey: cfg.AmazonPayments.AccessKey,
			SecretKey: cfg.AmazonPayments.SecretKey,
			SellerID:  cfg.AmazonPayments.SellerID,
		},
		Endpoint:          cfg.AmazonPayments.APIEndpoint,
		Version:           cfg.AmazonPayments.APIVersion,
		HTTPTimeout:       cfg.AmazonPayments.HTTPTimeout,
		RequestsPerSecond: cfg.AmazonPayments.RequestsPerSecond,
		RequestBurst:      cfg.AmazonPayments.RequestBurst,
	})
}

func mustCreateCheckoutService() (*config.Config, *sql.DB, *service.CheckoutService, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDB(cfg)

	checkoutService := service.NewCheckoutService(
		repository.NewCheckoutSessionRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewAuthAttemptRepository(db),
		repository.NewShippingAddressRepository(db),
		repository.NewPaymentSourceRepository(db),
		repository.NewPaymentEventRepository(db),
		newAmazonClient(cfg),
		cfg.AmazonPayments,
		cfg.Checkout,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, db, checkoutService, cleanup
}
