package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultCatalog []byte

// ProviderModels names the models used for each tier of one provider.
type ProviderModels struct {
	DefaultModel   string `yaml:"default_model"`
	ReasoningModel string `yaml:"reasoning_model"`
}

// ProviderCatalog maps provider identifiers to their models.
type ProviderCatalog struct {
	Default   string                    `yaml:"default"`
	Providers map[string]ProviderModels `yaml:"providers"`
}

// DefaultProviderCatalog returns the embedded catalog.
func DefaultProviderCatalog() ProviderCatalog {
	catalog, err := ParseProviderCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded provider catalog: %v", err))
	}
	return catalog
}

// LoadProviderCatalog reads a catalog file, falling back to the embedded one when path is empty.
func LoadProviderCatalog(path string) (ProviderCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProviderCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ProviderCatalog{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseProviderCatalog(data)
}

// ParseProviderCatalog decodes and validates catalog YAML.
func ParseProviderCatalog(data []byte) (ProviderCatalog, error) {
	var catalog ProviderCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return ProviderCatalog{}, fmt.Errorf("parse provider catalog: %w", err)
	}
	if len(catalog.Providers) == 0 {
		return ProviderCatalog{}, fmt.Errorf("provider catalog has no providers")
	}
	normalized := make(map[string]ProviderModels, len(catalog.Providers))
	for name, models := range catalog.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if strings.TrimSpace(models.DefaultModel) == "" {
			return ProviderCatalog{}, fmt.Errorf("provider %q: default_model is required", name)
		}
		if strings.TrimSpace(models.ReasoningModel) == "" {
			models.ReasoningModel = models.DefaultModel
		}
		normalized[key] = models
	}
	catalog.Providers = normalized
	catalog.Default = strings.ToLower(strings.TrimSpace(catalog.Default))
	if _, ok := catalog.Providers[catalog.Default]; !ok {
		catalog.Default = catalog.Names()[0]
	}
	return catalog, nil
}

// Names returns the provider identifiers in sorted order.
func (c ProviderCatalog) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
