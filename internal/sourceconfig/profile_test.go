package sourceconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
sources:
  dailymirror:
    selectors:
      title:
        - "h1.custom-title"
    scheduling:
      rate_limit_ms: 2000
      max_concurrency: 3
      priority: 9
    sections:
      - section: "news"
        pattern: "https://example.com/news?page=%d"
        max_pages: 10
  minimal:
    scheduling:
      priority: 1
`

func writeTestProfiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o644); err != nil {
		t.Fatalf("writing test profiles: %v", err)
	}
	return path
}

func TestLoadParsesConfiguredFields(t *testing.T) {
	store, err := Load(writeTestProfiles(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := store.Get("dailymirror")
	if p.Slug != "dailymirror" {
		t.Fatalf("expected slug to be set from the map key, got %q", p.Slug)
	}
	if len(p.Selectors.Title) != 1 || p.Selectors.Title[0] != "h1.custom-title" {
		t.Fatalf("expected configured title selector to survive, got %v", p.Selectors.Title)
	}
	if p.Scheduling.RateLimitMS != 2000 || p.Scheduling.Priority != 9 {
		t.Fatalf("expected configured scheduling hints to survive, got %+v", p.Scheduling)
	}
	if len(p.Sections) != 1 || p.Sections[0].MaxPages != 10 {
		t.Fatalf("expected one archive section with MaxPages 10, got %+v", p.Sections)
	}
}

func TestLoadAppliesFallbacksForOmittedFields(t *testing.T) {
	store, err := Load(writeTestProfiles(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := store.Get("dailymirror")
	if len(p.Selectors.Content) == 0 {
		t.Fatal("expected content selectors to fall back to defaults when omitted")
	}
	if len(p.DateMetaTags) == 0 {
		t.Fatal("expected date meta tags to fall back to defaults when omitted")
	}

	minimal := store.Get("minimal")
	if len(minimal.Selectors.Title) == 0 || len(minimal.Selectors.Image) == 0 {
		t.Fatal("expected a profile with no selectors at all to get every default selector")
	}
}

func TestGetUnknownSlugReturnsUsableDefaultProfile(t *testing.T) {
	store, err := Load(writeTestProfiles(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := store.Get("never-configured")
	if p.Slug != "never-configured" {
		t.Fatalf("expected the requested slug to be preserved, got %q", p.Slug)
	}
	if len(p.Selectors.Title) == 0 {
		t.Fatal("expected an unconfigured source to still get fallback selectors")
	}
}

func TestSlugsListsEveryConfiguredSource(t *testing.T) {
	store, err := Load(writeTestProfiles(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	slugs := store.Slugs()
	if len(slugs) != 2 {
		t.Fatalf("expected 2 configured slugs, got %v", slugs)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent profiles file")
	}
}
