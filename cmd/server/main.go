package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/chemtrack/chemtrack/internal/delivery"
	"github.com/chemtrack/chemtrack/internal/handlers"
	"github.com/chemtrack/chemtrack/internal/middleware"
	"github.com/chemtrack/chemtrack/internal/repository"
	"github.com/chemtrack/chemtrack/internal/service"
	"github.com/chemtrack/chemtrack/internal/store"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded")
	}

	if err := run(logger); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	dbCfg, err := loadAWSConfig(startupCtx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
	if err != nil {
		return fmt.Errorf("configure DynamoDB: %w", err)
	}
	dynamoClient := dynamodb.NewFromConfig(dbCfg)
	userRepo := repository.NewUserRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	activityRepo := repository.NewActivityRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	ttlStore := store.Open(startupCtx, &cfg.Redis, logger)
	defer ttlStore.Close()

	dispatcher := delivery.NewDispatcherFromConfig(startupCtx, cfg, snsConfig(startupCtx, cfg, logger), logger)
	logger.WithField("providers", dispatcher.Providers()).Info("SMS delivery configured")

	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		return fmt.Errorf("initialize JWT service: %w", err)
	}

	otpService := service.NewOTPService(
		ttlStore,
		service.NewRateLimiter(ttlStore, cfg.OTP.MaxPerHour, cfg.OTP.MaxPerDay, logger),
		dispatcher,
		userRepo,
		activityRepo,
		service.NewNumericCodeGenerator(cfg.OTP.Length),
		clock.New(),
		&cfg.OTP,
		logger,
	)
	refreshTokenService := service.NewRefreshTokenService(ttlStore, clock.New(), logger)

	router := setupRouter(
		handlers.NewAuthHandlers(otpService, jwtService, refreshTokenService, logger),
		handlers.NewHealthHandler(ttlStore),
		middleware.NewAuthMiddleware(jwtService, logger),
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"env":     cfg.App.Env,
			"storage": ttlStore.Backend(),
		}).Info("Starting server")
		serveErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// snsConfig returns nil when SNS is disabled or its AWS config cannot be
// loaded; the dispatcher then skips the SNS channel.
func snsConfig(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *aws.Config {
	if !cfg.SMS.SNS.Enabled {
		return nil
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SMS.SNS.Region, cfg.SMS.SNS.Endpoint)
	if err != nil {
		logger.WithError(err).Warn("AWS SNS configuration failed, SNS provider disabled")
		return nil
	}
	return &awsCfg
}

// loadAWSConfig points the SDK at endpoint when one is given (local stacks).
func loadAWSConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.CORSMiddleware, middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet, http.MethodOptions)

	api := router.PathPrefix("/api/v1").Subrouter()

	otp := api.PathPrefix("/otp").Subrouter()
	otp.HandleFunc("/send", authHandlers.SendOTP).Methods(http.MethodPost, http.MethodOptions)
	otp.HandleFunc("/verify", authHandlers.VerifyOTP).Methods(http.MethodPost, http.MethodOptions)

	requireAuth := authMiddleware.RequireAuth

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/refresh", authHandlers.RefreshToken).Methods(http.MethodPost, http.MethodOptions)
	auth.Handle("/logout", requireAuth(http.HandlerFunc(authHandlers.Logout))).Methods(http.MethodPost, http.MethodOptions)

	api.Handle("/me", requireAuth(http.HandlerFunc(authHandlers.Me))).Methods(http.MethodGet, http.MethodOptions)

	return router
}
