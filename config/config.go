// Package config holds the engine configuration and loads it from YAML.
package config

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"

	"github.com/Frederickfan/Database-management-system/common"
)

// Config holds everything needed to open an engine instance.
type Config struct {
	// StorageDir holds one heap file per table.
	StorageDir string `yaml:"storage_dir"`
	// CatalogDir holds the persisted catalog. Defaults to StorageDir when empty.
	CatalogDir string `yaml:"catalog_dir"`
	// BufferPoolPages is the number of frames in the shared buffer pool.
	BufferPoolPages int `yaml:"buffer_pool_pages"`
	// OperatorMemoryPages is the memory budget B given to each transaction's operators.
	OperatorMemoryPages int `yaml:"operator_memory_pages"`
	// FlushInterval enables a background flusher of dirty pages when positive.
	FlushInterval time.Duration `yaml:"flush_interval"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		StorageDir:          "./data",
		BufferPoolPages:     256,
		OperatorMemoryPages: 5,
		FlushInterval:       time.Second,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads a YAML config file. Keys missing from the file keep their Default values. If the file does not
// exist, Default is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, common.WrapError(common.InvalidConfigError, err, "cannot parse %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.StorageDir == "" {
		return common.NewError(common.InvalidConfigError, "storage_dir must be set")
	}
	if c.OperatorMemoryPages < 3 {
		return common.NewError(common.InvalidConfigError, "operator_memory_pages must be at least 3, got %d", c.OperatorMemoryPages)
	}
	if c.FlushInterval < 0 {
		return common.NewError(common.InvalidConfigError, "flush_interval must not be negative, got %s", c.FlushInterval)
	}
	if c.BufferPoolPages < c.OperatorMemoryPages {
		return common.NewError(common.InvalidConfigError, "buffer_pool_pages (%d) is smaller than operator_memory_pages (%d)",
			c.BufferPoolPages, c.OperatorMemoryPages)
	}
	return nil
}

// CatalogPath returns the directory of the persisted catalog.
func (c Config) CatalogPath() string {
	if c.CatalogDir == "" {
		return c.StorageDir
	}
	return c.CatalogDir
}
