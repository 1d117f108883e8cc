package di

import (
	"fmt"
	"time"

	"github.com/meep1w/pocket/internal/handler"
	"github.com/meep1w/pocket/internal/lock"
	"github.com/meep1w/pocket/internal/notify"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/internal/service"
	"github.com/meep1w/pocket/internal/supervisor"
	"github.com/meep1w/pocket/pkg/config"
	"github.com/meep1w/pocket/pkg/database"
	pkgredis "github.com/meep1w/pocket/pkg/redis"
)

// Container holds all dependencies for the platform
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *pkgredis.Client
	Notifier notify.Notifier
	Locker   lock.Locker

	// Repositories
	TenantRepo   repository.TenantRepository
	ConfigRepo   repository.TenantConfigRepository
	UserRepo     repository.UserRepository
	PostbackRepo repository.PostbackRepository

	// Services
	TenantService   service.TenantService
	PostbackService service.PostbackService

	// Supervisor
	Supervisor *supervisor.Supervisor

	// Handlers
	PostbackHandler *handler.PostbackHandler
	TenantHandler   *handler.TenantHandler
	HealthHandler   *handler.HealthHandler
}

// ContainerConfig contains the pieces main has already connected
type ContainerConfig struct {
	Config  *config.Config
	DB      *database.PostgresDB
	Redis   *pkgredis.Client
	Runtime supervisor.Runtime
	Checker supervisor.EntitlementChecker
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	c := &Container{
		DB:    cfg.DB,
		Redis: cfg.Redis,
	}

	// Repositories
	c.TenantRepo = repository.NewPostgresTenantRepository(cfg.DB.Pool)
	c.ConfigRepo = repository.NewPostgresTenantConfigRepository(cfg.DB.Pool)
	c.UserRepo = repository.NewPostgresUserRepository(cfg.DB.Pool)
	c.PostbackRepo = repository.NewPostgresPostbackRepository(cfg.DB.Pool)

	// Ingestion lock: Redis when available so multiple instances
	// serialize correctly, process-local otherwise
	if cfg.Redis != nil {
		c.Locker = lock.NewRedisLocker(cfg.Redis.Client, 10*time.Second)
	} else {
		c.Locker = lock.NewKeyedMutex()
	}

	// State-changed hook
	if cfg.Config.Kafka.Enabled {
		kn, err := notify.NewKafkaNotifier(
			cfg.Config.Kafka.Brokers,
			cfg.Config.Kafka.Topic,
			cfg.Config.Kafka.ClientID,
		)
		if err != nil {
			return nil, fmt.Errorf("kafka notifier: %w", err)
		}
		c.Notifier = kn
	} else {
		c.Notifier = notify.NewLogNotifier()
	}

	// Services
	c.TenantService = service.NewTenantService(c.TenantRepo, c.ConfigRepo, c.UserRepo, c.PostbackRepo)
	c.PostbackService = service.NewPostbackService(
		c.TenantRepo, c.ConfigRepo, c.UserRepo, c.PostbackRepo,
		c.Locker, c.Notifier,
		service.SecretMode(cfg.Config.Postback.SecretMode),
		cfg.Config.Postback.GlobalSecret,
	)

	// Supervisor
	c.Supervisor = supervisor.New(c.TenantRepo, cfg.Runtime, cfg.Checker, cfg.Config.Supervisor)

	// Handlers
	c.PostbackHandler = handler.NewPostbackHandler(c.PostbackService)
	c.TenantHandler = handler.NewTenantHandler(c.TenantService)
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Supervisor)

	return c, nil
}
