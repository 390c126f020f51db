package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"payguard/internal/config"
	"payguard/internal/ledger"
	"payguard/internal/policy"
	"payguard/internal/ratelimit"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore builds the ledger backend: volatile when no DSN is configured,
// Postgres otherwise. The returned closer is non-nil for durable stores.
func (a *App) openStore(ctx context.Context) (ledger.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; using volatile in-memory ledger")
		var opts []ledger.MemoryOption
		if a.Config.Database.TenantID != "" {
			opts = append(opts, ledger.WithTenant(a.Config.Database.TenantID))
		}
		return ledger.NewMemoryStore(opts...), nil, nil
	}

	pool, err := ledger.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	var opts []ledger.PostgresOption
	if a.Config.Database.TenantID != "" {
		opts = append(opts, ledger.WithPostgresTenant(a.Config.Database.TenantID))
	}
	store := ledger.NewPostgresStore(pool, opts...)

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	return store, store.Close, nil
}

// newLimiter builds the configured rate-limiter backend.
func (a *App) newLimiter() (ratelimit.Limiter, func(), error) {
	switch a.Config.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: a.Config.RateLimit.RedisAddr,
			DB:   a.Config.RateLimit.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		limiter := ratelimit.NewRedisLimiter(client, ratelimit.WithPrefix(a.Config.RateLimit.KeyPrefix))
		closer := func() { _ = client.Close() }
		return limiter, closer, nil
	default:
		return ratelimit.NewMemoryLimiter(), nil, nil
	}
}

// loadPolicyGroups reads the policy document from the configured source.
// No source means no groups: everything is allowed and nothing is capped.
func (a *App) loadPolicyGroups() ([]policy.Group, error) {
	switch {
	case a.Config.Policy.Inline != "":
		doc, err := policy.ParseDocument([]byte(a.Config.Policy.Inline))
		if err != nil {
			return nil, err
		}
		return doc.PolicyGroups, nil
	case a.Config.Policy.Path != "":
		doc, err := policy.LoadFile(a.Config.Policy.Path)
		if err != nil {
			return nil, err
		}
		return doc.PolicyGroups, nil
	default:
		a.Logger.Warn().Msg("no policy document configured; all transfers are unrestricted")
		return nil, nil
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	GroupName string
	Direction string
}

// ExportOptions hold parameters for exporting ledger records.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	CSVPath   string
	PNGPath   string
	GroupName string
	Bucket    time.Duration
	MaxPoints int
}

// ResolveMaxPoints returns either the CLI override or config default.
func (a *App) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return a.Config.Export.MaxDataPoints
}
