package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinio/clinio/internal/config"
	"github.com/clinio/clinio/internal/domain/billing"
	"github.com/clinio/clinio/internal/domain/consultation"
	"github.com/clinio/clinio/internal/domain/dispensing"
	"github.com/clinio/clinio/internal/domain/inventory"
	"github.com/clinio/clinio/internal/domain/patient"
	"github.com/clinio/clinio/internal/domain/registration"
	"github.com/clinio/clinio/internal/domain/reporting"
	"github.com/clinio/clinio/internal/domain/user"
	"github.com/clinio/clinio/internal/platform/apperr"
	"github.com/clinio/clinio/internal/platform/auth"
	"github.com/clinio/clinio/internal/platform/db"
	"github.com/clinio/clinio/internal/platform/metrics"
	"github.com/clinio/clinio/internal/platform/middleware"
)

func main() {
	root := &cobra.Command{
		Use:   "clinio-server",
		Short: "Clinio clinic management backend",
	}

	root.AddCommand(serveCmd(), migrateCmd(), adminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if dir == "" {
				dir = cfg.MigrationsDir
			}
			applied, err := db.NewMigrator(pool, dir).Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", applied)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, dir).Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})

	return cmd
}

func adminCmd() *cobra.Command {
	var (
		username string
		password string
		fullName string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative maintenance commands",
	}

	create := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("invalid role %q", role)
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u := &user.User{
				ID:           uuid.New(),
				Username:     username,
				PasswordHash: hash,
				FullName:     fullName,
				Role:         role,
				IsActive:     true,
			}
			if u.FullName == "" {
				u.FullName = username
			}
			if err := user.NewRepoPG(pool).Create(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Printf("created user %s (%s) with role %s\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&fullName, "full-name", "", "display name")
	create.Flags().StringVar(&role, "role", "admin", "role: admin, doctor or assistant")

	cmd.AddCommand(create)
	return cmd
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	m := metrics.New()
	numbers := db.NewSequenceGenerator(pool)
	tx := db.NewTransactor(pool)
	tokens := auth.NewTokenIssuer(
		[]byte(cfg.JWTSecret),
		cfg.JWTIssuer,
		time.Duration(cfg.AccessTokenTTL)*time.Minute,
		time.Duration(cfg.RefreshTokenTTL)*time.Hour,
	)

	// Repositories.
	userRepo := user.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	appointmentRepo := registration.NewAppointmentRepoPG(pool)
	registrationRepo := registration.NewRepoPG(pool)
	consultationRepo := consultation.NewRepoPG(pool)
	prescriptionRepo := consultation.NewPrescriptionRepoPG(pool)
	certificateRepo := consultation.NewCertificateRepoPG(pool)
	categoryRepo := inventory.NewCategoryRepoPG(pool)
	supplierRepo := inventory.NewSupplierRepoPG(pool)
	medicineRepo := inventory.NewMedicineRepoPG(pool)
	stockRepo := inventory.NewStockRepoPG(pool)
	purchaseOrderRepo := inventory.NewPurchaseOrderRepoPG(pool)
	billRepo := billing.NewRepoPG(pool)
	debtRepo := billing.NewDebtRepoPG(pool)
	chargeItemRepo := billing.NewChargeItemRepoPG(pool)
	pharmacyRepo := dispensing.NewPharmacyRepoPG(pool)
	orderRepo := dispensing.NewOrderRepoPG(pool)
	reportRepo := reporting.NewRepoPG(pool)

	// Services. Billing consumes consultation totals, registration triggers
	// bill creation, and consultations dispense against inventory.
	userSvc := user.NewService(userRepo, tokens)
	patientSvc := patient.NewService(patientRepo, numbers)
	inventorySvc := inventory.NewService(categoryRepo, supplierRepo, medicineRepo, stockRepo, purchaseOrderRepo, numbers, tx)
	consultationSvc := consultation.NewService(consultationRepo, prescriptionRepo, certificateRepo, inventorySvc, numbers, tx, m, logger)
	billingSvc := billing.NewService(billRepo, debtRepo, chargeItemRepo, consultationSvc, patientRepo, numbers, tx, m, logger, cfg.ConsultationFee)
	registrationSvc := registration.NewService(registrationRepo, appointmentRepo, billingSvc, numbers, tx, m)
	pharmacyClient := dispensing.NewClient(time.Duration(cfg.PharmacyTimeoutS)*time.Second, cfg.PharmacyRetries, m, logger)
	dispensingSvc := dispensing.NewService(orderRepo, pharmacyRepo, pharmacyClient, numbers, tx, m, logger)
	reportingSvc := reporting.NewService(reportRepo, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.EchoErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-API-Key"},
	}))

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	// Login, token refresh and the pharmacy webhook carry their own
	// credentials and sit outside the JWT middleware.
	public := e.Group("/api/v1", rateLimit)
	userHandler := user.NewHandler(userSvc)
	userHandler.RegisterAuthRoutes(public)
	dispensingHandler := dispensing.NewHandler(dispensingSvc)
	dispensingHandler.RegisterWebhookRoutes(public)

	var authn echo.MiddlewareFunc
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET unset, using development auth middleware")
		authn = auth.DevAuthMiddleware()
	} else {
		authn = auth.JWTMiddleware(auth.JWTConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer})
	}

	api := e.Group("/api/v1", rateLimit, authn)
	userHandler.RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	registration.NewHandler(registrationSvc).RegisterRoutes(api)
	consultation.NewHandler(consultationSvc).RegisterRoutes(api)
	inventory.NewHandler(inventorySvc).RegisterRoutes(api)
	billing.NewHandler(billingSvc).RegisterRoutes(api)
	dispensingHandler.RegisterRoutes(api)
	reporting.NewHandler(reportingSvc).RegisterRoutes(api)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
