package collection

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func sampleMetadata() []Metadata {
	return []Metadata{
		{Path: "/pics/image1.jpg", FileName: "image1.jpg", FileSize: 1024},
		{Path: "/pics/image2.png", FileName: "image2.png", FileSize: 2048},
		{Path: "/pics/image3.gif", FileName: "image3.gif", FileSize: 512},
	}
}

func TestNewCollection(t *testing.T) {
	c := New(sampleMetadata(), zap.NewNop())
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	if c.IsEmpty() {
		t.Error("IsEmpty = true")
	}
}

func TestMetadataLookups(t *testing.T) {
	c := New(sampleMetadata(), zap.NewNop())

	m, ok := c.MetadataAt(0)
	if !ok || m.FileName != "image1.jpg" {
		t.Errorf("MetadataAt(0) = %+v, %v", m, ok)
	}
	if _, ok := c.MetadataAt(3); ok {
		t.Error("MetadataAt out of range should report false")
	}

	m, ok = c.MetadataByPath("/pics/image2.png")
	if !ok || m.FileSize != 2048 {
		t.Errorf("MetadataByPath = %+v, %v", m, ok)
	}
	if _, ok := c.MetadataByPath("/nope.jpg"); ok {
		t.Error("MetadataByPath for unknown path should report false")
	}
}

func TestFilterAndSort(t *testing.T) {
	c := New(sampleMetadata(), zap.NewNop())

	jpg := c.Filter(func(m Metadata) bool { return strings.HasSuffix(m.FileName, ".jpg") })
	if jpg.Len() != 1 {
		t.Fatalf("filtered Len = %d, want 1", jpg.Len())
	}
	m, _ := jpg.MetadataAt(0)
	if m.FileName != "image1.jpg" {
		t.Errorf("filtered kept %q", m.FileName)
	}

	bySize := c.Sort(func(a, b Metadata) bool { return a.FileSize < b.FileSize })
	first, _ := bySize.MetadataAt(0)
	last, _ := bySize.MetadataAt(2)
	if first.FileSize != 512 || last.FileSize != 2048 {
		t.Errorf("sort order wrong: first=%d last=%d", first.FileSize, last.FileSize)
	}

	// The original collection is untouched.
	orig, _ := c.MetadataAt(0)
	if orig.FileSize != 1024 {
		t.Errorf("source collection mutated: %+v", orig)
	}
}

func TestDigest(t *testing.T) {
	c := New(sampleMetadata(), zap.NewNop())
	d := c.Digest()
	if d.TotalImages != 3 {
		t.Errorf("TotalImages = %d, want 3", d.TotalImages)
	}
	if d.TotalSizeBytes != 1024+2048+512 {
		t.Errorf("TotalSizeBytes = %d", d.TotalSizeBytes)
	}
}

func TestFromPathsSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(good, []byte("imagebytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := FromPaths([]string{good, filepath.Join(dir, "missing.jpg"), dir}, zap.NewNop())
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	m, _ := c.MetadataAt(0)
	if m.FileName != "a.jpg" || m.FileSize != int64(len("imagebytes")) {
		t.Errorf("metadata = %+v", m)
	}
	if m.DateModified == "" {
		t.Error("DateModified not populated")
	}
}

func TestLoadAtAndCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	content := []byte("pretend this is a png")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	c := FromPaths([]string{path}, zap.NewNop())

	img, err := c.LoadAt(0)
	if err != nil {
		t.Fatalf("LoadAt: %v", err)
	}
	if img.Base64 != base64.StdEncoding.EncodeToString(content) {
		t.Error("base64 payload mismatch")
	}
	if img.FileName != "a.png" {
		t.Errorf("file name = %q", img.FileName)
	}

	// A second load is served from the cache even if the file disappears.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LoadAt(0); err != nil {
		t.Errorf("cached LoadAt: %v", err)
	}

	c.ClearCache()
	if _, err := c.LoadAt(0); err == nil {
		t.Error("LoadAt after cache clear should re-read the missing file and fail")
	}
}

func TestLoadAtOutOfRange(t *testing.T) {
	c := New(nil, zap.NewNop())
	if _, err := c.LoadAt(0); err == nil {
		t.Error("LoadAt on empty collection should fail")
	}
}

func TestRandom(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	c := FromPaths(paths, zap.NewNop())

	imgs, err := c.Random(2)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("len = %d, want 2", len(imgs))
	}
	if imgs[0].FileName == imgs[1].FileName {
		t.Error("Random returned the same image twice")
	}

	// Requesting more than available caps at the collection size.
	imgs, err = c.Random(10)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(imgs) != 3 {
		t.Errorf("len = %d, want 3", len(imgs))
	}
}

func TestRandomEmptyCollection(t *testing.T) {
	c := New(nil, zap.NewNop())
	if _, err := c.Random(1); err == nil {
		t.Error("Random on empty collection should fail")
	}
}
