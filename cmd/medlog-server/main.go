package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medlog/medlog/internal/config"
	"github.com/medlog/medlog/internal/domain/audit"
	"github.com/medlog/medlog/internal/domain/identity"
	"github.com/medlog/medlog/internal/domain/ledger"
	"github.com/medlog/medlog/internal/domain/safety"
	"github.com/medlog/medlog/internal/platform/auth"
	"github.com/medlog/medlog/internal/platform/db"
	"github.com/medlog/medlog/internal/platform/middleware"
	"github.com/medlog/medlog/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medlog-server",
		Short: "Shared medication-administration log API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSigningKey),
	}

	// Health checks (unauthenticated)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Public routes: registration and login
	public := e.Group("/api/v1")

	// Authenticated API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}
	apiV1.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	public.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories
	userRepo := identity.NewUserRepoPG(pool)
	prescriptionRepo := ledger.NewPrescriptionRepoPG(pool)
	doseRepo := ledger.NewDoseRepoPG(pool)
	thresholdRepo := safety.NewThresholdRepoPG(pool)
	auditRepo := audit.NewEntryRepoPG(pool)

	// Services
	auditSvc := audit.NewService(auditRepo, logger)
	identitySvc := identity.NewService(userRepo, cfg.ClinicAccessCode, auditSvc)
	ledgerSvc := ledger.NewService(prescriptionRepo, doseRepo, auditSvc, logger)
	evaluator := safety.NewEvaluator(ledgerSvc, thresholdRepo, auditSvc, cfg.DefaultDoseCap)

	// Notifications: wire relay endpoints when configured, in-memory
	// senders otherwise so development still records sends.
	var emailSender notification.EmailSender = &notification.MockEmailSender{}
	if cfg.SMTPEndpoint != "" {
		emailSender = notification.NewHTTPEmailSender(cfg.SMTPEndpoint)
	}
	var smsSender notification.SMSSender = &notification.MockSMSSender{}
	if cfg.SMSEndpoint != "" {
		smsSender = notification.NewHTTPSMSSender(cfg.SMSEndpoint)
	}
	notifyMgr := notification.NewManager(emailSender, smsSender, notification.NewTemplateEngine())
	notifier := &ledgerNotifier{mgr: notifyMgr, logger: logger}

	// Handlers
	identity.NewHandler(identitySvc, jwtCfg).RegisterRoutes(public, apiV1)
	ledger.NewHandler(ledgerSvc, evaluator, notifier).RegisterRoutes(apiV1)
	safety.NewHandler(evaluator).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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

// ledgerNotifier adapts the notification manager to the ledger.Notifier
// interface. The recipient is the patient handle; resolving a handle to a
// real address is a directory concern outside this service, so relays
// receive the handle as-is. All failures are logged and swallowed.
type ledgerNotifier struct {
	mgr    *notification.Manager
	logger zerolog.Logger
}

func (n *ledgerNotifier) DoseLogged(ctx context.Context, d *ledger.DoseRecord) {
	_, err := n.mgr.SendFromTemplate(ctx, "dose-logged", map[string]string{
		"patient":    d.PatientHandle,
		"medication": d.Medication,
		"dose":       d.DoseAmount,
		"logged_by":  d.LoggedBy,
		"time":       d.TakenAt.Format("2006-01-02 15:04"),
	}, d.PatientHandle)
	if err != nil {
		n.logger.Warn().Err(err).Str("patient", d.PatientHandle).Msg("dose-logged notification failed")
	}
}

func (n *ledgerNotifier) CapReached(ctx context.Context, patientHandle, medication string) {
	_, err := n.mgr.SendFromTemplate(ctx, "cap-reached", map[string]string{
		"patient":    patientHandle,
		"medication": medication,
	}, patientHandle)
	if err != nil {
		n.logger.Warn().Err(err).Str("patient", patientHandle).Msg("cap-reached notification failed")
	}
}
