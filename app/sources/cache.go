package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9]+([.-][a-z0-9]+)+$`)

type Cache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewCache(sourcesDir string) *Cache {
	return &Cache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		key := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := c.LoadConfig(key)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", key, "name", config.Name, "enabled", config.Enabled)
	}

	return nil
}

func (c *Cache) LoadConfig(key string) (*Config, error) {
	configFile := filepath.Join(c.sourcesDir, key+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Key = key

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[config.Key] = &config

	return &config, nil
}

func (c *Cache) GetConfig(key string) (*Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.cache[key]
	if !ok {
		return nil, fmt.Errorf("source config with key '%s' not found", key)
	}
	return config, nil
}

// GetConfigs returns all configured sources ordered by key, so run order is
// stable across process restarts.
func (c *Cache) GetConfigs() []*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*Config, 0, len(c.cache))
	for _, v := range c.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })
	return configs
}

func (c *Cache) GetEnabledConfigs() []*Config {
	configs := c.GetConfigs()

	enabled := make([]*Config, 0, len(configs))
	for _, v := range configs {
		if v.Enabled {
			enabled = append(enabled, v)
		}
	}
	return enabled
}

func (c *Cache) GetConfigCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func validateConfig(config *Config) error {
	if config.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if !keyPattern.MatchString(config.Key) {
		return fmt.Errorf("source key '%s' is not a valid domain-like key", config.Key)
	}
	return nil
}
