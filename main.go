package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/joho/godotenv"
	"github.com/khanghh/kattest/internal/attestations"
	"github.com/khanghh/kattest/internal/audit"
	"github.com/khanghh/kattest/internal/common"
	"github.com/khanghh/kattest/internal/config"
	"github.com/khanghh/kattest/internal/handlers/api"
	"github.com/khanghh/kattest/internal/mail"
	"github.com/khanghh/kattest/internal/middlewares"
	"github.com/khanghh/kattest/internal/middlewares/sessions"
	"github.com/khanghh/kattest/internal/notify"
	"github.com/khanghh/kattest/internal/render"
	"github.com/khanghh/kattest/internal/signature"
	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/internal/twofactor"
	"github.com/khanghh/kattest/internal/users"
	"github.com/khanghh/kattest/internal/verification"
	"github.com/khanghh/kattest/model"
	"github.com/khanghh/kattest/params"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	emailFlag = &cli.StringFlag{
		Name:     "email",
		Usage:    "User email address",
		Required: true,
	}
	nameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "User full name",
	}
	passwordFlag = &cli.StringFlag{
		Name:     "password",
		Usage:    "User password",
		EnvVars:  []string{"KATTEST_USER_PASSWORD"},
		Required: true,
	}
	roleFlag = &cli.StringFlag{
		Name:  "role",
		Usage: "One of agent, chef, directeur, admin",
		Value: model.RoleAgent,
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "kattest - attestation signing and public verification server"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name:  "version",
			Usage: "Print version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "migrate",
			Usage:  "Create or update database tables",
			Action: runMigrate,
		},
		{
			Name:   "create-user",
			Usage:  "Create a user account",
			Flags:  []cli.Flag{emailFlag, nameFlag, passwordFlag, roleFlag},
			Action: runCreateUser,
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return nil, err
	}
	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))
	if err := model.InitIDGenerator(cfg.NodeID); err != nil {
		return nil, fmt.Errorf("init id generator: %w", err)
	}
	return cfg, nil
}

func initDatabase(dbConfig config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if dbConfig.MaxIdleConns > 0 {
			resolver.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			resolver.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register read replicas: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}
	return db, nil
}

func initMailSender(mailCfg config.MailConfig) (mail.MailSender, error) {
	switch mailCfg.Backend {
	case "smtp":
		smtpCfg := mailCfg.SMTP
		from := smtpCfg.From
		if from == "" {
			from = mailCfg.From
		}
		return mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     smtpCfg.Host,
			Port:     smtpCfg.Port,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			TLS:      smtpCfg.TLS,
			CertFile: smtpCfg.CertFile,
			KeyFile:  smtpCfg.KeyFile,
			CAFile:   smtpCfg.CAFile,
		}, from)
	case "", "log":
		slog.Warn("No mail backend configured, emails are written to the log")
		return mail.LogMailSender{}, nil
	}
	return nil, fmt.Errorf("unsupported mail sender backend %s", mailCfg.Backend)
}

// backends holds the key-value storage shared by sessions, 2FA state and the
// notification queue. Redis is used when configured, process memory otherwise.
type backends struct {
	sessionStorage fiber.Storage
	cacheStorage   store.Storage
	queue          notify.Queue
	redisStorage   *redis.Storage
}

func (b *backends) redisConn() goredis.UniversalClient {
	if b.redisStorage == nil {
		return nil
	}
	return b.redisStorage.Conn()
}

func initBackends(redisCfg config.RedisConfig) *backends {
	if redisCfg.URL == "" {
		slog.Warn("Redis is not configured, using in-memory storage")
		return &backends{
			sessionStorage: memory.New(),
			cacheStorage:   store.NewMemoryStorage(),
			queue:          notify.NewMemoryQueue(1024),
		}
	}
	redisStorage := redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
	return &backends{
		sessionStorage: redisStorage,
		cacheStorage:   store.NewRedisStorage(redisStorage.Conn()),
		queue:          notify.NewRedisQueue(redisStorage.Conn(), params.NotifyQueueKey),
		redisStorage:   redisStorage,
	}
}

func runMigrate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := initDatabase(cfg.MySQL)
	if err != nil {
		return err
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	slog.Info("Database migrated")
	return nil
}

func runCreateUser(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := initDatabase(cfg.MySQL)
	if err != nil {
		return err
	}
	userService := users.NewUserService(users.NewUserRepository(db))
	user, err := userService.CreateUser(ctx.Context, users.CreateUserOptions{
		Email:    ctx.String(emailFlag.Name),
		FullName: ctx.String(nameFlag.Name),
		Password: ctx.String(passwordFlag.Name),
		Role:     ctx.String(roleFlag.Name),
	})
	if err != nil {
		return err
	}
	slog.Info("User created", "id", user.ID, "email", user.Email, "role", user.Role)
	return nil
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	globalVars := fiber.Map{
		"siteName": cfg.SiteName,
		"baseURL":  cfg.BaseURL,
	}
	if err := render.Initialize(globalVars, cfg.TemplateDir); err != nil {
		return err
	}
	mailSender, err := initMailSender(cfg.Mail)
	if err != nil {
		return err
	}
	db, err := initDatabase(cfg.MySQL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		return err
	}
	backend := initBackends(cfg.Redis)

	// repositories
	var (
		userRepo        = users.NewUserRepository(db)
		configRepo      = signature.NewConfigRepository(db)
		auditRepo       = audit.NewAuditLogRepository(db)
		attestationRepo = attestations.NewRepository(db)
	)

	// services
	var (
		auditLogger      = audit.NewLogger(auditRepo)
		notifier         = notify.NewNotifier(backend.queue)
		userService      = users.NewUserService(userRepo)
		signatureService = signature.NewSignatureService(configRepo, auditLogger, cfg.Signature.PinMaxAttempts, cfg.Signature.PinLockout)
		twoFactorService = twofactor.NewTwoFactorService(cfg.MasterKey, cfg.SiteName, backend.cacheStorage, configRepo, auditLogger, notifier)
		linkSigner       = verification.NewLinkSigner(cfg.Signature.VerifyKey, cfg.BaseURL, cfg.Signature.VerifyLinkMaxAge)
		verifyService    = verification.NewService(linkSigner, attestationRepo, userService)
	)
	attestationService := attestations.NewAttestationService(
		attestationRepo,
		signatureService,
		twoFactorService,
		signatureService,
		userService,
		linkSigner,
		notifier,
		auditLogger,
		cfg.SiteName,
		cfg.StorageDir,
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.NewErrorHandler(cfg.Debug),
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CSRF-Token, X-2FA-Token",
		AllowCredentials: len(cfg.AllowOrigins) > 0 && !strings.Contains(strings.Join(cfg.AllowOrigins, ","), "*"),
	}))

	api.SetupRoutes(router, api.Handlers{
		Auth:        api.NewAuthHandler(userService, auditLogger),
		TwoFactor:   api.NewTwoFactorHandler(twoFactorService, signatureService),
		Signature:   api.NewSignatureHandler(signatureService),
		Attestation: api.NewAttestationHandler(attestationService),
		Verify:      api.NewVerifyHandler(verifyService),
		Audit:       api.NewAuditHandler(auditLogger),
	}, sessions.Config{
		Storage:        backend.sessionStorage,
		SessionMaxAge:  cfg.Session.SessionMaxAge,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHttpOnly: cfg.Session.CookieHttpOnly,
		CookieName:     cfg.Session.CookieName,
	}, userService)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := notify.NewDispatcher(backend.queue, mailSender, cfg.Notify.Workers, cfg.Notify.MaxRetries, cfg.Notify.RetryDelay)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(runCtx)
		close(dispatcherDone)
	}()

	healthCheckDone := make(chan struct{})
	go common.StartHealthCheckServer(runCtx, healthCheckDone, backend.redisConn(), db)

	go func() {
		<-runCtx.Done()
		if err := router.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "addr", cfg.ListenAddr, "version", params.VersionWithCommit(gitCommit, gitDate))
	err = router.Listen(cfg.ListenAddr)
	stop()
	<-dispatcherDone
	<-healthCheckDone
	return err
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
