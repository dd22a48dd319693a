package mirror

import (
	"testing"

	"github.com/orbit-hub/orbit/internal/config"
)

func referenceMappings() []Mapping {
	return []Mapping{
		{Prefix: "/e/1/", Origin: "https://raw.githubusercontent.com/qrs/x/fixy/"},
		{Prefix: "/e/2/", Origin: "https://raw.githubusercontent.com/3v1/V5-Assets/main/"},
		{Prefix: "/e/3/", Origin: "https://raw.githubusercontent.com/3v1/V5-Retro/master/"},
	}
}

func TestResolveAppendsSuffix(t *testing.T) {
	resolver, err := NewResolver(referenceMappings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testCases := []struct {
		path string
		want string
	}{
		{"/e/1/foo.png", "https://raw.githubusercontent.com/qrs/x/fixy/foo.png"},
		{"/e/2/games/doom/index.html", "https://raw.githubusercontent.com/3v1/V5-Assets/main/games/doom/index.html"},
		{"/e/3/", "https://raw.githubusercontent.com/3v1/V5-Retro/master/"},
	}
	for _, tc := range testCases {
		got, ok := resolver.Resolve(tc.path)
		if !ok {
			t.Fatalf("expected %s to resolve", tc.path)
		}
		if got != tc.want {
			t.Fatalf("resolve %s: expected %s, got %s", tc.path, tc.want, got)
		}
	}
}

func TestResolveMissReturnsAbsent(t *testing.T) {
	resolver, _ := NewResolver(referenceMappings())
	for _, path := range []string{"/e/4/foo.png", "/e/1", "/", "", "/static/e/1/foo.png"} {
		if got, ok := resolver.Resolve(path); ok {
			t.Fatalf("expected %q to be absent, got %s", path, got)
		}
		if resolver.Handles(path) {
			t.Fatalf("Handles(%q) should be false", path)
		}
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	resolver, _ := NewResolver([]Mapping{
		{Prefix: "/e/", Origin: "https://broad.example/"},
		{Prefix: "/e/1/", Origin: "https://specific.example/"},
	})

	got, ok := resolver.Resolve("/e/1/foo.png")
	if !ok {
		t.Fatalf("expected path to resolve")
	}
	if got != "https://broad.example/1/foo.png" {
		t.Fatalf("earlier broader prefix must win, got %s", got)
	}

	reordered, _ := NewResolver([]Mapping{
		{Prefix: "/e/1/", Origin: "https://specific.example/"},
		{Prefix: "/e/", Origin: "https://broad.example/"},
	})
	if got, _ := reordered.Resolve("/e/1/foo.png"); got != "https://specific.example/foo.png" {
		t.Fatalf("declared order must be respected, got %s", got)
	}
	if got, _ := reordered.Resolve("/e/9/bar.js"); got != "https://broad.example/9/bar.js" {
		t.Fatalf("fallthrough to broader prefix failed, got %s", got)
	}
}

func TestResolverCopiesMappings(t *testing.T) {
	mappings := referenceMappings()
	resolver, _ := NewResolver(mappings)
	mappings[0].Origin = "https://mutated.example/"

	if got, _ := resolver.Resolve("/e/1/a.js"); got != "https://raw.githubusercontent.com/qrs/x/fixy/a.js" {
		t.Fatalf("resolver must not observe caller mutations, got %s", got)
	}
	listed := resolver.Mappings()
	listed[1].Prefix = "/changed/"
	if !resolver.Handles("/e/2/a.js") {
		t.Fatalf("Mappings() must return a copy")
	}
}

func TestNewResolverRejectsEmpty(t *testing.T) {
	if _, err := NewResolver(nil); err == nil {
		t.Fatalf("expected error for empty mapping table")
	}
	if _, err := NewResolver([]Mapping{{Prefix: "", Origin: "https://x.example/"}}); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
}

func TestNewResolverFromConfig(t *testing.T) {
	resolver, err := NewResolverFromConfig([]config.MirrorConfig{
		{Prefix: "/e/1/", Origin: "https://raw.githubusercontent.com/qrs/x/fixy/"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := resolver.Resolve("/e/1/foo.png"); got != "https://raw.githubusercontent.com/qrs/x/fixy/foo.png" {
		t.Fatalf("unexpected resolution: %s", got)
	}
}
