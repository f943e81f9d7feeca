package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rohankatakam/paperwalk/internal/logging"
)

// ClientConfig holds Neo4j connection settings.
type ClientConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
}

// Client wraps the Neo4j driver with per-operation transaction settings.
type Client struct {
	driver      neo4j.DriverWithContext
	logger      *slog.Logger
	database    string
	maxPoolSize int
	monitor     *TimeoutMonitor
}

// NewClient connects to Neo4j and verifies connectivity (fail fast on startup).
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%s, user=%s", cfg.URI, cfg.User)
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = cfg.MaxPoolSize
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = time.Hour
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	logger := logging.Component("neo4j")
	logger.Info("neo4j client connected",
		"uri", cfg.URI,
		"user", cfg.User,
		"database", cfg.Database,
		"max_pool_size", cfg.MaxPoolSize)

	return &Client{
		driver:      driver,
		logger:      logger,
		database:    cfg.Database,
		maxPoolSize: cfg.MaxPoolSize,
		monitor:     NewTimeoutMonitor(logger),
	}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	c.logger.Info("neo4j client closed")
	return nil
}

// HealthCheck verifies Neo4j connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	cfg := GetConfigForOperation(OpHealthCheck)
	return c.monitor.Run(ctx, cfg, func(ctx context.Context) error {
		if err := c.driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j health check failed: %w", err)
		}
		return nil
	})
}

// ExecuteRead runs a read query in a managed transaction.
func (c *Client) ExecuteRead(ctx context.Context, operation, query string, params map[string]any) ([]map[string]any, error) {
	return c.execute(ctx, neo4j.AccessModeRead, operation, query, params)
}

// ExecuteWrite runs a write query in a managed (retried by the driver) transaction.
func (c *Client) ExecuteWrite(ctx context.Context, operation, query string, params map[string]any) ([]map[string]any, error) {
	return c.execute(ctx, neo4j.AccessModeWrite, operation, query, params)
}

func (c *Client) execute(ctx context.Context, mode neo4j.AccessMode, operation, query string, params map[string]any) ([]map[string]any, error) {
	txConfig := GetConfigForOperation(operation)
	var records []map[string]any

	err := c.monitor.Run(ctx, txConfig, func(ctx context.Context) error {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: c.database,
			AccessMode:   mode,
		})
		defer session.Close(ctx)

		work := func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			collected, err := result.Collect(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(collected))
			for _, record := range collected {
				out = append(out, record.AsMap())
			}
			return out, nil
		}

		var res any
		var err error
		if mode == neo4j.AccessModeWrite {
			res, err = session.ExecuteWrite(ctx, work, txConfig.AsNeo4jConfig()...)
		} else {
			res, err = session.ExecuteRead(ctx, work, txConfig.AsNeo4jConfig()...)
		}
		if err != nil {
			return err
		}
		records = res.([]map[string]any)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", operation, err)
	}

	c.logger.Debug("query executed", "operation", operation, "record_count", len(records))
	return records, nil
}

// Database returns the configured database name
func (c *Client) Database() string {
	return c.database
}
