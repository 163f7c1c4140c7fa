// Package scanner resolves resource configurations to lists of image files
// on disk. Resource configs are exchanged with the front end as JSON.
package scanner

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Filter holds the include and exclude path sets of a resource config.
type Filter struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// Config identifies a named set of image sources.
type Config struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Filters Filter `json:"filters"`
}

// Result is a resolved, deduplicated path list.
type Result struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

// IsImageFile reports whether the file name carries a recognized image
// extension.
func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scanner caches resource configs and their resolved path lists.
type Scanner struct {
	log *zap.Logger

	mu      sync.Mutex
	configs map[string]Config
	paths   map[string][]string
}

// New creates an empty scanner.
func New(log *zap.Logger) *Scanner {
	return &Scanner{
		log:     log,
		configs: make(map[string]Config),
		paths:   make(map[string][]string),
	}
}

// LoadConfig reads a resource config from a JSON file.
func (s *Scanner) LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes a resource config as pretty JSON and caches it.
func (s *Scanner) SaveConfig(cfg Config, path string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	s.mu.Lock()
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()
	return nil
}

// ConfigByID returns a previously resolved or saved config.
func (s *Scanner) ConfigByID(id string) (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	return cfg, ok
}

// Resolve expands the config's include paths into a sorted, deduplicated
// list of image files, honoring the exclude prefixes. Results are cached
// per config id until the cache is cleared.
func (s *Scanner) Resolve(cfg Config) (Result, error) {
	s.mu.Lock()
	s.configs[cfg.ID] = cfg
	if cached, ok := s.paths[cfg.ID]; ok {
		s.mu.Unlock()
		return Result{Paths: cached, Count: len(cached)}, nil
	}
	s.mu.Unlock()

	var all []string
	for _, include := range cfg.Filters.Include {
		paths, err := s.resolvePath(include, cfg.Filters.Exclude)
		if err != nil {
			return Result{}, err
		}
		all = append(all, paths...)
	}

	slices.Sort(all)
	all = slices.Compact(all)

	s.mu.Lock()
	s.paths[cfg.ID] = all
	s.mu.Unlock()

	return Result{Paths: all, Count: len(all)}, nil
}

// ResolveID resolves a config previously seen by Resolve or SaveConfig.
func (s *Scanner) ResolveID(id string) (Result, error) {
	cfg, ok := s.ConfigByID(id)
	if !ok {
		return Result{}, fmt.Errorf("config not found for id %q", id)
	}
	return s.Resolve(cfg)
}

func (s *Scanner) resolvePath(path string, exclude []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}

	if !info.IsDir() {
		if IsImageFile(info.Name()) && !excluded(path, exclude) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var result []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("failed to read directory entry", zap.String("path", p), zap.Error(err))
			return nil
		}
		if excluded(p, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsImageFile(d.Name()) {
			result = append(result, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
	}
	return result, nil
}

func excluded(path string, exclude []string) bool {
	for _, e := range exclude {
		if strings.HasPrefix(path, e) {
			return true
		}
	}
	return false
}

// ClearCache drops every resolved path list.
func (s *Scanner) ClearCache() {
	s.mu.Lock()
	s.paths = make(map[string][]string)
	s.mu.Unlock()
}

// ClearConfigCache drops the resolved path list of one config.
func (s *Scanner) ClearConfigCache(id string) {
	s.mu.Lock()
	delete(s.paths, id)
	s.mu.Unlock()
}
