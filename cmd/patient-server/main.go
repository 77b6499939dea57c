package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/his/patientrecords/internal/config"
	"github.com/his/patientrecords/internal/domain/patient"
	"github.com/his/patientrecords/internal/domain/refdata"
	"github.com/his/patientrecords/internal/platform/db"
	"github.com/his/patientrecords/internal/platform/middleware"
	"github.com/his/patientrecords/internal/platform/phi"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "patient-server",
		Short: "Patient records API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(refdataCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient records API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func refdataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refdata [name]",
		Short: "List reference enumerations, or the values of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRefdata(cmd.OutOrStdout(), args)
		},
	}
}

func printRefdata(w io.Writer, args []string) error {
	if len(args) == 0 {
		for _, n := range refdata.Names() {
			fmt.Fprintln(w, n)
		}
		return nil
	}
	values, ok := refdata.Values(refdata.Name(args[0]))
	if !ok {
		return fmt.Errorf("unknown reference enumeration %q", args[0])
	}
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func runServer() error {
	// Bootstrap logger until config tells us the format and level.
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:         cfg.DatabaseURL,
		Schema:      cfg.DBSchema,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		IdleTimeout: cfg.DBIdleTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	var enc phi.FieldEncryptor
	key, err := cfg.PHIKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PHI key")
	}
	if key != nil {
		aes, err := phi.NewAESEncryptor(key)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create PHI encryptor")
		}
		enc = aes
		logger.Info().Msg("PHI field encryption enabled")
	} else {
		logger.Warn().Msg("PHI_ENCRYPTION_KEY not set, contact fields stored in clear text")
	}

	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	svc := newPatientService(pool, enc, reg, logger)
	e := newServer(cfg, logger, svc, reg)
	e.GET("/health/db", db.HealthHandler(pool, append([]string{"patient", "health_record"}, patient.DependentTables...)...))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newPatientService(pool *pgxpool.Pool, enc phi.FieldEncryptor, reg *prometheus.Registry, logger zerolog.Logger) *patient.Service {
	var opts []patient.Option
	if reg != nil {
		opts = append(opts, patient.WithMetrics(patient.NewMetrics(reg)))
	}
	return patient.NewService(
		patient.NewPatientRepo(pool, enc),
		patient.NewHealthRecordRepo(pool),
		patient.NewDependentRepos(pool),
		db.NewTransactor(pool, logger),
		logger,
		opts...,
	)
}

// newServer builds the echo instance with middleware and routes. A nil
// registry disables /metrics.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *patient.Service, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.IdentityFromGateway())
	e.Use(middleware.Logger(logger))
	if reg != nil {
		e.Use(middleware.NewHTTPMetrics(reg).Middleware())
	}
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	var recorder middleware.AuditRecorder
	if reg != nil {
		recorder = middleware.NewAccessCounter(reg)
	}
	e.Use(middleware.Audit(logger, recorder))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	apiV1 := e.Group("/api/v1")
	patient.NewHandler(svc).RegisterRoutes(apiV1)
	refdata.NewHandler().RegisterRoutes(apiV1)

	return e
}
