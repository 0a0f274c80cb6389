package theme

import (
	"strings"
	"testing"

	"linkfolio/internal/themes"
)

func TestResolveFallsBack(t *testing.T) {
	if got := Resolve(radii, "LG", "md"); got != "1rem" {
		t.Fatalf("expected case-insensitive lookup, got %q", got)
	}
	if got := Resolve(radii, "huge", "md"); got != "0.5rem" {
		t.Fatalf("expected fallback radius, got %q", got)
	}
}

func TestVariablesUseGradientsWhenEnabled(t *testing.T) {
	preset, ok := themes.LookupPreset("midnight")
	if !ok {
		t.Fatal("expected midnight preset")
	}
	vars := Variables(themes.PresetView(preset, ""))
	if !strings.HasPrefix(vars["--page-background"], "linear-gradient") {
		t.Fatalf("expected gradient page background, got %q", vars["--page-background"])
	}

	plain := themes.PresetView(themes.DefaultPreset(), "")
	vars = Variables(plain)
	if vars["--page-background"] != plain.Colors.Background {
		t.Fatalf("expected solid background, got %q", vars["--page-background"])
	}
	if vars["--max-width"] != "640px" {
		t.Fatalf("unexpected max width %q", vars["--max-width"])
	}
}

func TestStylesheetStripsUnsafeCharacters(t *testing.T) {
	view := themes.PresetView(themes.DefaultPreset(), "")
	view.Colors.Primary = "#fff;}</style><script>"
	css := Stylesheet(view)
	if strings.Contains(css, "</style>") || strings.Contains(css, "<script>") {
		t.Fatalf("stylesheet was not sanitized: %s", css)
	}
	if !strings.HasPrefix(css, ":root{") {
		t.Fatalf("expected root variables first: %s", css)
	}
}

func TestComponentClasses(t *testing.T) {
	view := themes.PresetView(themes.DefaultPreset(), "")
	view.Layout.ButtonStyle = "outline"
	view.Layout.CardStyle = "unknown"
	if got := ButtonClass(view); got != "link-button link-button--outline" {
		t.Fatalf("unexpected button class %q", got)
	}
	if got := CardClass(view); got != "profile-card profile-card--flat" {
		t.Fatalf("unexpected card class %q", got)
	}
}
