package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/app"
	"github.com/Freeeeeet/coach_scheduler/internal/config"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// runtime общие зависимости всех подкоманд: конфиг, логгер, пул и репозитории
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool

	users        *repository.UserRepository
	sessions     *repository.SessionRepository
	negotiations *repository.NegotiationRepository
	availability *repository.AvailabilityRepository
	tx           *repository.TxManager
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if !cfg.EnvFileLoaded {
		logger.Debug("No .env file, using process environment")
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		users:        repository.NewUserRepository(pool),
		sessions:     repository.NewSessionRepository(pool),
		negotiations: repository.NewNegotiationRepository(pool),
		availability: repository.NewAvailabilityRepository(pool),
		tx:           repository.NewTxManager(pool),
	}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
	_ = r.logger.Sync()
}

func (r *runtime) migrate(ctx context.Context) (int64, error) {
	migrator, err := app.NewMigrator(r.pool, repository.Migrations, "migrations", r.logger)
	if err != nil {
		return 0, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		return 0, err
	}
	return migrator.Version(ctx)
}

func (r *runtime) availabilityService() (*service.AvailabilityService, error) {
	return service.NewAvailabilityService(r.availability, r.sessions, r.users, r.tx, r.logger, service.DefaultTemplateCacheSize)
}

// coach загружает коуча по внутреннему id
func (r *runtime) coach(ctx context.Context, id int64) (*model.User, error) {
	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if u == nil || !u.IsCoach {
		return nil, fmt.Errorf("user %d is not a coach", id)
	}
	return u, nil
}
