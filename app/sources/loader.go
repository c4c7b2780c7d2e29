package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of source definitions.
type Loader struct {
	sourcesDir string
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads every YAML definition file from the sources directory and
// returns the combined source list in file order.
func (l *Loader) LoadAll() ([]Source, error) {
	var all []Source

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return all, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, path := range files {
		loaded, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", path, err)
		}
		all = append(all, loaded...)
		slog.Debug("Loaded source definitions", "file", path, "count", len(loaded))
	}

	seen := make(map[string]bool, len(all))
	for _, src := range all {
		if seen[src.SourceName()] {
			return nil, fmt.Errorf("duplicate source name: %s", src.SourceName())
		}
		seen[src.SourceName()] = true
	}

	return all, nil
}

func (l *Loader) loadFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var out []Source

	for i, src := range doc.News {
		if err := validateNews(src); err != nil {
			return nil, fmt.Errorf("invalid news source at index %d: %w", i, err)
		}
		out = append(out, src)
	}

	for i, src := range doc.Council {
		if err := validateCouncil(src); err != nil {
			return nil, fmt.Errorf("invalid council source at index %d: %w", i, err)
		}
		if src.MinutesSelector == "" {
			src.MinutesSelector = defaultMinutesSelector
		}
		out = append(out, src)
	}

	for i, src := range doc.Social {
		if err := validateSocial(src); err != nil {
			return nil, fmt.Errorf("invalid social source at index %d: %w", i, err)
		}
		out = append(out, src)
	}

	return out, nil
}

func validateBase(b base) error {
	if b.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if b.DisplayName == "" {
		return fmt.Errorf("display name is required")
	}
	switch b.County {
	case "", CountyNash, CountyEdgecombe, CountyWilson:
	default:
		return fmt.Errorf("invalid county: %q", b.County)
	}
	return nil
}

func validateNews(s NewsSource) error {
	if err := validateBase(s.base); err != nil {
		return err
	}
	if s.URL == "" {
		return fmt.Errorf("news source URL is required")
	}
	if s.FeedURL == "" {
		return fmt.Errorf("news source feed URL is required")
	}
	return nil
}

func validateCouncil(s CouncilSource) error {
	if err := validateBase(s.base); err != nil {
		return err
	}
	if s.URL == "" {
		return fmt.Errorf("council source URL is required")
	}
	if s.County == "" {
		return fmt.Errorf("council source county is required")
	}
	return nil
}

func validateSocial(s SocialSource) error {
	if err := validateBase(s.base); err != nil {
		return err
	}
	if s.Platform != "facebook" && s.Platform != "instagram" {
		return fmt.Errorf("invalid social platform: %q", s.Platform)
	}
	if s.AccountID == "" {
		return fmt.Errorf("social source account ID is required")
	}
	return nil
}
