package catalog

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPageSize = 4
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	catalogConfig, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	slog.Debug("Catalog configuration loaded",
		"file", path,
		"source", catalogConfig.Source.URL,
		"page_size", catalogConfig.Settings.PageSize,
		"categories", len(catalogConfig.Categories))

	return catalogConfig, nil
}

func Parse(data []byte) (*Config, error) {
	var catalogConfig Config
	if err := yaml.Unmarshal(data, &catalogConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if catalogConfig.Settings.PageSize == 0 {
		catalogConfig.Settings.PageSize = DefaultPageSize
	}

	sortKey, err := ParseSortKey(string(catalogConfig.Settings.DefaultSort))
	if err != nil {
		return nil, fmt.Errorf("invalid default sort: %w", err)
	}
	catalogConfig.Settings.DefaultSort = sortKey

	title := cases.Title(language.English)
	for i := range catalogConfig.Categories {
		category := &catalogConfig.Categories[i]
		category.Key = strings.ToLower(strings.TrimSpace(category.Key))
		if category.Name == "" {
			category.Name = title.String(strings.ReplaceAll(category.Key, "-", " "))
		}
	}

	if err := validate(&catalogConfig); err != nil {
		return nil, err
	}

	return &catalogConfig, nil
}

func validate(catalogConfig *Config) error {
	if catalogConfig.Source.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	sourceURL, err := url.Parse(catalogConfig.Source.URL)
	if err != nil || !sourceURL.IsAbs() {
		return fmt.Errorf("source URL must be absolute: %s", catalogConfig.Source.URL)
	}

	if catalogConfig.Settings.PageSize < 0 {
		return fmt.Errorf("page size must be positive")
	}
	if catalogConfig.Source.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	seen := make(map[string]bool, len(catalogConfig.Categories))
	for i, category := range catalogConfig.Categories {
		if category.Key == "" {
			return fmt.Errorf("category at index %d has no key", i)
		}
		if category.Key == AllCategories {
			return fmt.Errorf("category key '%s' is reserved", AllCategories)
		}
		if seen[category.Key] {
			return fmt.Errorf("duplicate category key: %s", category.Key)
		}
		seen[category.Key] = true
	}

	return nil
}

// HasCategory reports whether key is the "all" sentinel or a configured
// category. An empty category list accepts any key.
func (c *Config) HasCategory(key string) bool {
	if key == AllCategories || len(c.Categories) == 0 {
		return true
	}
	for _, category := range c.Categories {
		if category.Key == key {
			return true
		}
	}
	return false
}

func (c *Config) GetTimeout() time.Duration {
	if c.Source.Timeout <= 0 {
		return 0
	}
	return time.Duration(c.Source.Timeout) * time.Second
}
