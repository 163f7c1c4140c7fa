// Package collection models an ordered set of images with lazily loaded,
// base64-encoded payloads for the front end.
package collection

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metadata describes one image file.
type Metadata struct {
	Path         string `json:"path"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	DateCreated  string `json:"date_created,omitempty"`
	DateModified string `json:"date_modified,omitempty"`
}

// ImageData is a loaded image ready for display.
type ImageData struct {
	Base64   string   `json:"base64"`
	FileName string   `json:"file_name"`
	Metadata Metadata `json:"metadata"`
}

// Digest summarizes a collection.
type Digest struct {
	TotalImages    int   `json:"total_images"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Collection is an immutable list of image metadata with a per-index cache
// of loaded payloads.
type Collection struct {
	meta []Metadata
	log  *zap.Logger

	mu    sync.Mutex
	cache []*ImageData
}

// New builds a collection over the given metadata.
func New(meta []Metadata, log *zap.Logger) *Collection {
	return &Collection{
		meta:  meta,
		log:   log,
		cache: make([]*ImageData, len(meta)),
	}
}

// FromPaths builds a collection by stat-ing each path, skipping entries
// that are missing or not regular files.
func FromPaths(paths []string, log *zap.Logger) *Collection {
	meta := make([]Metadata, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			log.Warn("skipping invalid path", zap.String("path", p))
			continue
		}
		meta = append(meta, Metadata{
			Path:         p,
			FileName:     filepath.Base(p),
			FileSize:     info.Size(),
			DateModified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	return New(meta, log)
}

// Len returns the number of images.
func (c *Collection) Len() int { return len(c.meta) }

// IsEmpty reports whether the collection holds no images.
func (c *Collection) IsEmpty() bool { return len(c.meta) == 0 }

// AllMetadata returns a copy of every image's metadata.
func (c *Collection) AllMetadata() []Metadata {
	return append([]Metadata(nil), c.meta...)
}

// MetadataAt returns the metadata at index i.
func (c *Collection) MetadataAt(i int) (Metadata, bool) {
	if i < 0 || i >= len(c.meta) {
		return Metadata{}, false
	}
	return c.meta[i], true
}

// MetadataByPath returns the metadata of the image at the given path.
func (c *Collection) MetadataByPath(path string) (Metadata, bool) {
	for _, m := range c.meta {
		if m.Path == path {
			return m, true
		}
	}
	return Metadata{}, false
}

// LoadAt reads and base64-encodes the image at index i, serving repeated
// loads from the cache.
func (c *Collection) LoadAt(i int) (ImageData, error) {
	if i < 0 || i >= len(c.meta) {
		return ImageData{}, fmt.Errorf("index out of bounds: %d", i)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached := c.cache[i]; cached != nil {
		return *cached, nil
	}

	m := c.meta[i]
	b, err := os.ReadFile(m.Path)
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to read file: %w", err)
	}
	data := ImageData{
		Base64:   base64.StdEncoding.EncodeToString(b),
		FileName: m.FileName,
		Metadata: m,
	}
	c.cache[i] = &data
	return data, nil
}

// Random returns up to n distinct images in random order, skipping any that
// fail to load.
func (c *Collection) Random(n int) ([]ImageData, error) {
	if c.IsEmpty() {
		return nil, fmt.Errorf("collection is empty")
	}

	indices := rand.Perm(c.Len())
	if n > len(indices) {
		n = len(indices)
	}

	result := make([]ImageData, 0, n)
	for _, i := range indices[:n] {
		img, err := c.LoadAt(i)
		if err != nil {
			c.log.Warn("failed to load image", zap.Int("index", i), zap.Error(err))
			continue
		}
		result = append(result, img)
	}
	return result, nil
}

// Filter returns a new collection holding the images the predicate keeps.
func (c *Collection) Filter(keep func(Metadata) bool) *Collection {
	var meta []Metadata
	for _, m := range c.meta {
		if keep(m) {
			meta = append(meta, m)
		}
	}
	return New(meta, c.log)
}

// Sort returns a new collection ordered by the less function.
func (c *Collection) Sort(less func(a, b Metadata) bool) *Collection {
	meta := append([]Metadata(nil), c.meta...)
	sort.SliceStable(meta, func(i, j int) bool { return less(meta[i], meta[j]) })
	return New(meta, c.log)
}

// ClearCache drops every cached payload.
func (c *Collection) ClearCache() {
	c.mu.Lock()
	for i := range c.cache {
		c.cache[i] = nil
	}
	c.mu.Unlock()
}

// Digest returns the collection's summary.
func (c *Collection) Digest() Digest {
	var total int64
	for _, m := range c.meta {
		total += m.FileSize
	}
	return Digest{TotalImages: c.Len(), TotalSizeBytes: total}
}
