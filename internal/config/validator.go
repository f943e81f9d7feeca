package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/paperwalk/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextFetch - provider-only commands (fetch, search without storing)
	ValidationContextFetch ValidationContext = "fetch"
	// ValidationContextExpand - expansion needs the provider and a graph store
	ValidationContextExpand ValidationContext = "expand"
	// ValidationContextAnalytics - centrality needs Neo4j with GDS
	ValidationContextAnalytics ValidationContext = "analytics"
	// ValidationContextServe - the HTTP server needs everything expansion needs
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Err returns nil when valid, otherwise a config error carrying the report.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigErrorf("%s", vr.Error())
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextFetch:
		c.validateProvider(result)
	case ValidationContextExpand:
		c.validateProvider(result)
		c.validateGraph(result)
		c.validateExpansion(result)
	case ValidationContextAnalytics:
		c.validateNeo4j(result, true)
		c.validateAnalytics(result)
	case ValidationContextServe, ValidationContextAll:
		c.validateServer(result)
		c.validateProvider(result)
		c.validateGraph(result)
		c.validateExpansion(result)
		c.validateAnalytics(result)
		c.validateStorage(result)
		c.validateCache(result)
	}

	return result
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Server.ListenAddr == "" {
		result.AddError("server.listen_addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		result.AddWarning("server.shutdown_timeout is not positive, shutdown will not wait for requests")
	}
}

func (c *Config) validateProvider(result *ValidationResult) {
	if c.Provider.BaseURL == "" {
		result.AddError("provider.base_url is required")
	} else if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("provider.base_url is invalid: %q", c.Provider.BaseURL)
	}

	if c.Provider.APIKey == "" {
		result.AddWarning("%s is not set, requests use the shared unauthenticated rate limit", APIKeyEnvVar)
	}
	if c.Provider.RateLimit <= 0 {
		result.AddError("provider.rate_limit must be positive, got %v", c.Provider.RateLimit)
	}
	if c.Provider.PageSize <= 0 || c.Provider.PageSize > 1000 {
		result.AddError("provider.page_size must be between 1 and 1000, got %d", c.Provider.PageSize)
	}
	if c.Provider.MaxAttempts < 1 {
		result.AddError("provider.max_attempts must be at least 1")
	}
	if c.Provider.Timeout <= 0 {
		result.AddError("provider.timeout must be positive")
	}
}

func (c *Config) validateGraph(result *ValidationResult) {
	switch c.Graph.Backend {
	case "neo4j":
		c.validateNeo4j(result, true)
	case "memory":
		result.AddWarning("graph.backend is memory, nothing survives a restart")
	default:
		result.AddError("graph.backend must be neo4j or memory, got %q", c.Graph.Backend)
	}

	if c.Graph.PaperBatchSize <= 0 || c.Graph.EdgeBatchSize <= 0 {
		result.AddError("graph batch sizes must be positive")
	}
}

func (c *Config) validateNeo4j(result *ValidationResult, required bool) {
	if c.Neo4j.URI == "" {
		if required {
			result.AddError("NEO4J_URI is required but not set")
		} else {
			result.AddWarning("NEO4J_URI is not set")
		}
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	}

	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER is required but not set")
	}

	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD (or NEO4J_PWD) is required but not set")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password")
	}

	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, will use 'neo4j' as default")
	}
}

func (c *Config) validateExpansion(result *ValidationResult) {
	if c.Expansion.Depth < 1 {
		result.AddError("expansion.depth must be at least 1, got %d", c.Expansion.Depth)
	}
	if c.Expansion.Depth > 3 {
		result.AddWarning("expansion.depth %d grows the graph very quickly", c.Expansion.Depth)
	}
	if c.Expansion.Concurrency < 1 {
		result.AddError("expansion.concurrency must be at least 1")
	}
}

func (c *Config) validateAnalytics(result *ValidationResult) {
	if c.Analytics.ProjectionName == "" {
		result.AddError("analytics.projection_name is required")
	}
	if c.Analytics.MaxIterations < 1 {
		result.AddError("analytics.max_iterations must be at least 1")
	}
	if c.Analytics.DampingFactor <= 0 || c.Analytics.DampingFactor >= 1 {
		result.AddError("analytics.damping_factor must be in (0, 1), got %v", c.Analytics.DampingFactor)
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "none", "":
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("LOCAL_DB_PATH is required for sqlite run history")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("POSTGRES_DSN is required but not set")
		} else if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		}
	default:
		result.AddError("storage.type must be sqlite, postgres or none, got %q", c.Storage.Type)
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if !c.Cache.Enabled {
		return
	}
	if c.Cache.Path == "" {
		result.AddError("cache.path is required when the cache is enabled")
	}
	if c.Cache.TTL <= 0 {
		result.AddWarning("cache.ttl is not positive, cached papers never expire")
	}
}
