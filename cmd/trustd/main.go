package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-trust/pkg/audit"
	auditapi "github.com/tendant/simple-trust/pkg/audit/api"
	"github.com/tendant/simple-trust/pkg/config"
	"github.com/tendant/simple-trust/pkg/device"
	deviceapi "github.com/tendant/simple-trust/pkg/device/api"
	"github.com/tendant/simple-trust/pkg/errors"
	"github.com/tendant/simple-trust/pkg/notification"
	"github.com/tendant/simple-trust/pkg/ratelimit"
	"github.com/tendant/simple-trust/pkg/sessions"
	sessionsapi "github.com/tendant/simple-trust/pkg/sessions/api"
	"github.com/tendant/simple-trust/pkg/user"
	userapi "github.com/tendant/simple-trust/pkg/user/api"
)

// SeedConfig is the account created on an empty memory or file store
type SeedConfig struct {
	Username string `env:"TRUST_SEED_USERNAME" env-default:"demo"`
	Password string `env:"TRUST_SEED_PASSWORD" env-default:"demo-password"`
	Email    string `env:"TRUST_SEED_EMAIL" env-default:"demo@example.com"`
}

type repositories struct {
	users   user.UserRepository
	devices device.DeviceRepository
	audit   audit.Repository
}

func main() {
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.SlogLevel(),
	})))

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Persistence.Type == config.PersistencePostgres {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err = dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		defer pool.Close()
	}

	repos, err := newRepositories(cfg.Persistence, pool)
	if err != nil {
		slog.Error("Failed creating repositories", "persistence", cfg.Persistence.Type, "err", err)
		os.Exit(1)
	}

	userService := user.NewUserService(repos.users)
	if cfg.Persistence.Type != config.PersistencePostgres {
		var seed SeedConfig
		if err := cleanenv.ReadEnv(&seed); err != nil {
			slog.Error("Failed reading seed config", "err", err)
			os.Exit(1)
		}
		seedAccount(ctx, userService, seed)
	}

	expiry, err := cfg.JWT.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Invalid access token expiry", "value", cfg.JWT.AccessTokenExpiry, "err", err)
		os.Exit(1)
	}

	auditLogger := audit.NewLogger(repos.audit)
	deviceService := device.NewDeviceService(repos.devices, auditLogger)
	manager := sessions.NewManager(
		user.NewPasswordVerifier(repos.users),
		repos.users,
		deviceService,
		auditLogger,
		sessions.NewCodec(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, expiry),
		sessions.WithNotifier(newNotifier(cfg.Email)),
	)

	cookies := sessions.NewCookieSetter(cfg.JWT.CookieHttpOnly, cfg.JWT.CookieSecure)
	cookies.SameSite = cfg.JWT.CookieSameSite()

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Route("/api/v1", func(r chi.Router) {
		var loginLimits []func(http.Handler) http.Handler
		if cfg.RateLimit.LoginEnabled {
			limiter := ratelimit.NewLimiter(cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginPerMinute, cfg.RateLimit.BucketTTL)
			loginLimits = append(loginLimits, ratelimit.PerIP(limiter))
		}
		r.Mount("/auth", sessionsapi.Routes(sessionsapi.NewHandle(manager, cookies), loginLimits...))

		r.Group(func(r chi.Router) {
			r.Use(manager.RequireSession)

			userHandle := userapi.NewHandle(userService)
			r.Mount("/devices", deviceapi.Handler(deviceapi.NewDeviceHandler(deviceService)))
			r.Mount("/audit", auditapi.Routes(auditapi.NewHandle(auditLogger)))
			r.Mount("/me", userapi.MeRoutes(userHandle))
			r.Mount("/admin", userapi.AdminRoutes(userHandle))
		})
	})

	slog.Info("Starting trustd", "persistence", cfg.Persistence.Type, "emailNotices", cfg.Email.Enabled)
	server.Run()
}

func newRepositories(p config.PersistenceConfig, pool *pgxpool.Pool) (repositories, error) {
	var (
		userConfig   user.RepositoryConfig
		deviceConfig device.RepositoryConfig
		auditConfig  audit.RepositoryConfig
	)
	switch p.Type {
	case config.PersistencePostgres:
		userConfig.DB = pool
		deviceConfig.DB = pool
		auditConfig.DB = pool
	case config.PersistenceFile:
		userConfig.DataDir = p.DataDir
		deviceConfig.DataDir = p.DataDir
		auditConfig.DataDir = p.DataDir
	}

	users, err := user.NewUserRepository(p.Type, userConfig)
	if err != nil {
		return repositories{}, err
	}
	devices, err := device.NewDeviceRepository(p.Type, deviceConfig)
	if err != nil {
		return repositories{}, err
	}
	auditRepo, err := audit.NewRepository(p.Type, auditConfig)
	if err != nil {
		return repositories{}, err
	}
	return repositories{users: users, devices: devices, audit: auditRepo}, nil
}

func newNotifier(cfg config.EmailConfig) notification.NewDeviceNotifier {
	if !cfg.Enabled {
		return notification.NoOpNotifier{}
	}
	notifier, err := notification.NewEmailNotifier(cfg.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed creating email notifier, new device notices disabled", "host", cfg.Host, "err", err)
		return notification.NoOpNotifier{}
	}
	return notifier
}

func seedAccount(ctx context.Context, users *user.UserService, seed SeedConfig) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	u, err := users.CreateUser(ctx, seed.Username, seed.Email, seed.Password, true)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeConflict) {
			slog.Debug("Seed account already exists", "username", seed.Username)
			return
		}
		slog.Error("Failed creating seed account", "username", seed.Username, "err", err)
		return
	}
	slog.Info("Seed account created", "username", u.Username, "userID", u.ID)
}

func loadEnvFile() {
	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		if candidate := filepath.Join(filepath.Dir(execPath), ".env"); fileExists(candidate) {
			envFile = candidate
		}
	}
	if !fileExists(envFile) {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "path", envFile, "err", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
