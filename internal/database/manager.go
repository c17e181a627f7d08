package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Manager holds the shared PostgreSQL and Redis connections. PostgreSQL is
// the write-side analytics store and is optional: with an empty DatabaseURL
// the manager runs Redis-only and DB stays nil.
type Manager struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *logrus.Logger
}

type Config struct {
	DatabaseURL string
	RedisURL    string
	LogLevel    string
}

// NewManager creates a new database manager with connection pooling
func NewManager(config *Config, logger *logrus.Logger) (*Manager, error) {
	manager := &Manager{logger: logger}

	if config.DatabaseURL != "" {
		gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
		if config.LogLevel == "debug" {
			gormLog = gormlogger.Default.LogMode(gormlogger.Info)
		}

		db, err := gorm.Open(postgres.Open(config.DatabaseURL), &gorm.Config{
			Logger:                 gormLog,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}

		// Connection pool settings
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)

		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		manager.DB = db
	} else {
		logger.Info("No database URL configured - analytics disabled")
	}

	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.PoolSize = 20
	redisOpts.MinIdleConns = 5
	redisOpts.MaxConnAge = time.Hour
	redisOpts.IdleTimeout = 30 * time.Minute
	redisOpts.IdleCheckFrequency = 30 * time.Second

	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	manager.Redis = redisClient

	logger.Info("Data store connections established successfully")

	return manager, nil
}

// HasDatabase reports whether the analytics store is configured
func (m *Manager) HasDatabase() bool {
	return m.DB != nil
}

// Migrate runs database migrations; a no-op when analytics is disabled
func (m *Manager) Migrate() error {
	if m.DB == nil {
		return nil
	}

	m.logger.Info("Running database migrations...")

	return m.DB.AutoMigrate(
		&models.SearchQuery{},
		&models.OrderRecord{},
		&models.PopularQuery{},
		&models.SystemHealth{},
	)
}

// Close closes all database connections
func (m *Manager) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			m.logger.WithError(err).Error("Failed to close Redis connection")
		}
	}

	if m.DB != nil {
		sqlDB, err := m.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

// Health check methods
func (m *Manager) PingDatabase() error {
	if m.DB == nil {
		return fmt.Errorf("database not configured")
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *Manager) PingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}

// Cache implementation
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

// Cache key constants
const (
	SearchResultsKey  = "search:results:%s"
	PopularQueriesKey = "popular:queries"
	SystemHealthKey   = "system:health"
)

// CacheSearchResults caches search results for a query key
func (c *Cache) CacheSearchResults(ctx context.Context, queryKey string, results interface{}, expiration time.Duration) error {
	key := fmt.Sprintf(SearchResultsKey, queryKey)

	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetCachedSearchResults retrieves cached search results
func (c *Cache) GetCachedSearchResults(ctx context.Context, queryKey string, result interface{}) error {
	key := fmt.Sprintf(SearchResultsKey, queryKey)

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// CachePopularQueries caches the popular queries list
func (c *Cache) CachePopularQueries(ctx context.Context, queries []models.PopularQuery, expiration time.Duration) error {
	data, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("failed to marshal popular queries: %w", err)
	}

	return c.client.Set(ctx, PopularQueriesKey, data, expiration).Err()
}

// GetCachedPopularQueries retrieves the cached popular queries list
func (c *Cache) GetCachedPopularQueries(ctx context.Context) ([]models.PopularQuery, error) {
	data, err := c.client.Get(ctx, PopularQueriesKey).Result()
	if err != nil {
		return nil, err
	}

	var queries []models.PopularQuery
	err = json.Unmarshal([]byte(data), &queries)
	return queries, err
}

// CacheSystemHealth caches system health status
func (c *Cache) CacheSystemHealth(ctx context.Context, health []models.SystemHealth, expiration time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("failed to marshal system health: %w", err)
	}

	return c.client.Set(ctx, SystemHealthKey, data, expiration).Err()
}

// GetCachedSystemHealth retrieves cached system health
func (c *Cache) GetCachedSystemHealth(ctx context.Context) ([]models.SystemHealth, error) {
	data, err := c.client.Get(ctx, SystemHealthKey).Result()
	if err != nil {
		return nil, err
	}

	var health []models.SystemHealth
	err = json.Unmarshal([]byte(data), &health)
	return health, err
}

// GetCacheStats reports Redis keyspace statistics
func (c *Cache) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	info := c.client.Info(ctx, "stats").Val()

	stats := map[string]interface{}{
		"keyspace_hits":     c.extractStat(info, "keyspace_hits"),
		"keyspace_misses":   c.extractStat(info, "keyspace_misses"),
		"used_memory":       c.extractStat(info, "used_memory"),
		"connected_clients": c.extractStat(info, "connected_clients"),
	}

	return stats, nil
}

func (c *Cache) extractStat(info, key string) string {
	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, key+":") {
			return strings.TrimPrefix(line, key+":")
		}
	}
	return "0"
}
