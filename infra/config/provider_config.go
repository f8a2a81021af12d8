package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// tenantConfigStorage is the persistence contract ProviderConfig drives,
// satisfied by both PostgresStorage and SQLiteStorage so the local-dev
// fallback is a drop-in swap rather than a second code path.
type tenantConfigStorage interface {
	SaveTenantConfig(tenantID, providerName string, config map[string]string) error
	LoadTenantConfig(tenantID, providerName string) (map[string]string, error)
	LoadAllTenantConfigs() (map[string]map[string]string, error)
	DeleteTenantConfig(tenantID, providerName string) error
	GetTenantsByProvider(providerName string) ([]string, error)
	GetStats() (map[string]any, error)
}

// sqliteFallbackPath is where the local-dev SQLite store lives when Postgres
// isn't reachable; matches sqlite_storage.go's multi-process WAL setup.
const sqliteFallbackPath = "./data/tenant_configs.db"

// ProviderConfig manages per-tenant connector credential configuration
// (merchant API keys, merchant IDs, sandbox/production toggles). Backed by
// PostgresStorage when App().DB is available, falling back to SQLiteStorage
// for local development.
type ProviderConfig struct {
	configs map[string]map[string]string
	storage tenantConfigStorage
	mu      sync.RWMutex // Thread-safe access
}

// NewProviderConfig creates a new provider configuration
func NewProviderConfig() *ProviderConfig {
	config := &ProviderConfig{
		configs: make(map[string]map[string]string),
	}

	db := App().DB
	if db != nil && db.DB != nil {
		storage, err := NewPostgresStorage(db)
		if err != nil {
			log.Printf("Warning: Failed to initialize PostgreSQL storage (%v), falling back to SQLite", err)
		} else {
			config.storage = storage
		}
	}
	if config.storage == nil {
		storage, err := NewSQLiteStorage(sqliteFallbackPath)
		if err != nil {
			log.Printf("Warning: Failed to initialize SQLite fallback storage (%v), using memory-only mode", err)
		} else {
			config.storage = storage
		}
	}

	if config.storage != nil {
		if err := config.loadFromStorage(); err != nil {
			log.Printf("Warning: Failed to load tenant configurations: %v", err)
		}
	}

	return config
}

// loadFromStorage loads all tenant configurations from the backing store.
func (c *ProviderConfig) loadFromStorage() error {
	if c.storage == nil {
		return fmt.Errorf("storage not initialized")
	}

	configs, err := c.storage.LoadAllTenantConfigs()
	if err != nil {
		return fmt.Errorf("failed to load configs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range configs {
		c.configs[k] = v
	}

	return nil
}

// SetTenantConfig dynamically sets configuration for a specific tenant and provider
func (c *ProviderConfig) SetTenantConfig(tenantID, providerName string, config map[string]string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if len(config) == 0 {
		return fmt.Errorf("config cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Save to PostgreSQL if available
	if c.storage != nil {
		if err := c.storage.SaveTenantConfig(tenantID, providerName, config); err != nil {
			return fmt.Errorf("failed to save config to PostgreSQL: %w", err)
		}
	}

	// Create tenant-specific provider key
	tenantProviderKey := fmt.Sprintf("%s_%s", strings.ToUpper(tenantID), strings.ToLower(providerName))

	// Update in-memory cache
	c.configs[tenantProviderKey] = config
	return nil
}

// GetTenantConfig returns the stored configuration for a specific tenant
// and provider, including the "environment" key SetTenantConfig folded in.
func (c *ProviderConfig) GetTenantConfig(tenantID, providerName string) (map[string]string, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID cannot be empty")
	}
	if providerName == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}
	if c.storage == nil {
		return nil, fmt.Errorf("storage not initialized")
	}

	return c.storage.LoadTenantConfig(tenantID, providerName)
}

// GetStats returns configuration and storage statistics
func (c *ProviderConfig) GetStats() (map[string]any, error) {
	stats := make(map[string]any)

	c.mu.RLock()
	memoryConfigs := len(c.configs)
	c.mu.RUnlock()

	stats["memory_configs"] = memoryConfigs

	// Get PostgreSQL statistics if available
	if c.storage != nil {
		postgresStats, err := c.storage.GetStats()
		if err != nil {
			stats["postgres_error"] = err.Error()
		} else {
			stats["postgres"] = postgresStats
		}
	} else {
		stats["postgres"] = "not_available"
	}

	return stats, nil
}

// DeleteTenantConfig deletes a tenant configuration
func (c *ProviderConfig) DeleteTenantConfig(tenantID, providerName string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Create tenant-specific provider key
	tenantProviderKey := fmt.Sprintf("%s_%s", strings.ToUpper(tenantID), strings.ToLower(providerName))

	// Delete from PostgreSQL if available
	if c.storage != nil {
		if err := c.storage.DeleteTenantConfig(tenantID, providerName); err != nil {
			return fmt.Errorf("failed to delete config from PostgreSQL: %w", err)
		}
	}

	// Delete from memory cache
	delete(c.configs, tenantProviderKey)
	return nil
}
