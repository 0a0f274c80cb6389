// Package theme turns a stored theme into the CSS used by the public page.
package theme

import (
	"fmt"
	"sort"
	"strings"

	"linkfolio/internal/themes"
)

var (
	radii = map[string]string{
		"none": "0",
		"sm":   "0.25rem",
		"md":   "0.5rem",
		"lg":   "1rem",
		"full": "9999px",
	}
	gaps = map[string]string{
		"compact": "0.5rem",
		"normal":  "0.875rem",
		"relaxed": "1.25rem",
	}
	fontSizes = map[string]string{
		"sm": "15px",
		"md": "16px",
		"lg": "18px",
	}
)

// Resolve looks up key in table, falling back to the entry for fallback.
func Resolve(table map[string]string, key, fallback string) string {
	if value, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return value
	}
	return table[fallback]
}

// cssValue strips characters that could end a declaration or the style block.
// Stored themes are validated already; this keeps rendering safe regardless.
func cssValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '{', '}', ';', '"', '\\':
			return -1
		}
		return r
	}, s)
}

// Variables returns the CSS custom properties for view.
func Variables(view themes.View) map[string]string {
	c := view.Colors
	vars := map[string]string{
		"--color-primary":        c.Primary,
		"--color-secondary":      c.Secondary,
		"--color-background":     c.Background,
		"--color-surface":        c.Surface,
		"--color-text":           c.Text,
		"--color-text-secondary": c.TextSecondary,
		"--color-accent":         c.Accent,
		"--color-border":         c.Border,
		"--font-heading":         fmt.Sprintf("'%s', system-ui, sans-serif", view.Fonts.Heading),
		"--font-body":            fmt.Sprintf("'%s', system-ui, sans-serif", view.Fonts.Body),
		"--font-heading-weight":  fmt.Sprint(view.Fonts.HeadingWeight),
		"--font-body-weight":     fmt.Sprint(view.Fonts.BodyWeight),
		"--font-size":            Resolve(fontSizes, view.Fonts.Size, "md"),
		"--radius":               Resolve(radii, view.Layout.BorderRadius, "md"),
		"--gap":                  Resolve(gaps, view.Layout.Spacing, "normal"),
		"--max-width":            fmt.Sprintf("%dpx", view.Layout.MaxWidth),
		"--page-background":      c.Background,
		"--button-background":    c.Primary,
	}
	if view.Gradients.Enabled {
		if view.Gradients.Background != "" {
			vars["--page-background"] = view.Gradients.Background
		}
		if view.Gradients.Button != "" {
			vars["--button-background"] = view.Gradients.Button
		}
	}
	return vars
}

// Stylesheet renders the root variables block followed by the base rules.
func Stylesheet(view themes.View) string {
	vars := Variables(view)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root{")
	for _, name := range names {
		fmt.Fprintf(&b, "%s:%s;", name, cssValue(vars[name]))
	}
	b.WriteString("}")
	b.WriteString(baseRules)
	return b.String()
}

// ButtonClass and CardClass select the component variants of the layout.
func ButtonClass(view themes.View) string {
	return "link-button link-button--" + Resolve(map[string]string{
		"filled": "filled", "outline": "outline", "soft": "soft", "shadow": "shadow",
	}, view.Layout.ButtonStyle, "filled")
}

func CardClass(view themes.View) string {
	return "profile-card profile-card--" + Resolve(map[string]string{
		"flat": "flat", "elevated": "elevated", "glass": "glass",
	}, view.Layout.CardStyle, "flat")
}

const baseRules = `
body{margin:0;min-height:100vh;background:var(--page-background);color:var(--color-text);font-family:var(--font-body);font-weight:var(--font-body-weight);font-size:var(--font-size)}
main{max-width:var(--max-width);margin:0 auto;padding:2.5rem 1rem;display:flex;flex-direction:column;gap:var(--gap)}
h1{font-family:var(--font-heading);font-weight:var(--font-heading-weight);margin:0.5rem 0 0}
.bio{color:var(--color-text-secondary);white-space:pre-line}
.avatar{width:96px;height:96px;border-radius:9999px;object-fit:cover;border:2px solid var(--color-border)}
.profile-card{padding:1.5rem;border-radius:var(--radius);text-align:center;background:var(--color-surface)}
.profile-card--elevated{box-shadow:0 10px 30px rgba(0,0,0,.12)}
.profile-card--glass{background:rgba(255,255,255,.08);backdrop-filter:blur(12px);border:1px solid var(--color-border)}
.links{list-style:none;margin:0;padding:0;display:flex;flex-direction:column;gap:var(--gap)}
.link-button{display:block;padding:0.9rem 1.25rem;border-radius:var(--radius);text-align:center;text-decoration:none;font-weight:600}
.link-button--filled,.link-button--shadow{background:var(--button-background);color:var(--color-background)}
.link-button--shadow{box-shadow:0 6px 18px rgba(0,0,0,.18)}
.link-button--outline{border:2px solid var(--color-primary);color:var(--color-primary)}
.link-button--soft{background:var(--color-surface);color:var(--color-primary)}
.link-description{display:block;font-weight:400;font-size:.85em;opacity:.8}
footer{text-align:center;color:var(--color-text-secondary);font-size:.8em}
`
