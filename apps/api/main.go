package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/ratelimit"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/storage/database/sqlxrepos"
	"github.com/trezcool/academia/storage/redisstore"
)

type repositories struct {
	users        user.Repository
	roles        access.RoleStore
	certificates certificate.Repository
	close        func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// rate limit presets are checked before anything else is opened
	presets, err := ratelimit.FromConfig(conf.RateLimit)
	if err != nil {
		logger.Fatal(fmt.Sprintf("invalid configuration: %v", err), err)
	}

	// set up DB
	repos, err := setUpRepositories(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(repos.users, mailSvc, conf)
	certSvc := certificate.NewService(repos.certificates, usrSvc)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := echoapi.NewMetrics()
	limiter, closeLimiter, err := setUpLimiter(ctx, conf, logger, metrics)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
	}
	defer closeLimiter()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server, err := echoapi.NewServer(conf.Server.Address, shutdown, &echoapi.Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		CertificateSvc: certSvc,
		RoleStore:      repos.roles,
		Limiter:        limiter,
		Presets:        presets,
		Metrics:        metrics,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("building server: %v", err), err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sdCtx, sdCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer sdCancel()

		if err = server.Stop(sdCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpRepositories(conf *core.Config, logger core.Logger) (*repositories, error) {
	if conf.Database.InMemory {
		logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		return &repositories{
			users:        inmemdb.NewUserRepository(db),
			roles:        inmemdb.NewRoleRepository(db),
			certificates: inmemdb.NewCertificateRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		users:        sqlxrepos.NewUserRepository(db),
		roles:        sqlxrepos.NewRoleRepository(db),
		certificates: sqlxrepos.NewCertificateRepository(db),
		close:        db.Close,
	}, nil
}

// setUpLimiter counts in Redis when configured so, in memory otherwise.
func setUpLimiter(
	ctx context.Context,
	conf *core.Config,
	logger core.Logger,
	metrics *echoapi.Metrics,
) (*ratelimit.Limiter, func(), error) {
	storeErrLog := &rate.Sometimes{First: 1, Interval: time.Minute}
	opts := []ratelimit.Option{
		ratelimit.WithObserver(metrics.ObserveRateLimit),
		ratelimit.WithStoreErrorHandler(func(err error) {
			storeErrLog.Do(func() { logger.Warn("rate limit store unavailable, counting in memory", err) })
		}),
	}

	switch conf.RateLimit.Backend {
	case "redis":
		client, err := redisstore.NewClient(ctx, conf.RateLimit)
		if err != nil {
			return nil, nil, core.NewConfigurationError("ratelimit.redisAddr", err)
		}
		limiter := ratelimit.New(append(opts, ratelimit.WithStore(redisstore.New(client, redisstore.DefaultKeyPrefix)))...)
		// the fallback store still needs sweeping
		limiter.StartJanitor(ctx, conf.RateLimit.SweepInterval)
		return limiter, func() {
			if err := client.Close(); err != nil {
				logger.Error("closing redis client", err)
			}
		}, nil
	case "memory", "":
		limiter := ratelimit.New(opts...)
		limiter.StartJanitor(ctx, conf.RateLimit.SweepInterval)
		return limiter, func() {}, nil
	default:
		return nil, nil, core.NewConfigurationError("ratelimit.backend", errors.Errorf("unknown backend %q", conf.RateLimit.Backend))
	}
}
