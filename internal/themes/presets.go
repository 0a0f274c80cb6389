package themes

import "linkfolio/models"

// Preset is a built-in theme template. Presets are never persisted.
type Preset struct {
	ID        string
	Name      string
	Colors    models.ThemeColors
	Gradients models.ThemeGradients
	Fonts     models.ThemeFonts
	Layout    models.ThemeLayout
}

// DefaultPresetID names the preset used when a profile has no active theme.
const DefaultPresetID = "minimal"

var catalogue = []Preset{
	{
		ID:   "minimal",
		Name: "Minimal",
		Colors: models.ThemeColors{
			Primary: "#111827", Secondary: "#4b5563", Background: "#ffffff", Surface: "#f9fafb",
			Text: "#111827", TextSecondary: "#6b7280", Accent: "#2563eb", Border: "#e5e7eb",
		},
		Gradients: models.ThemeGradients{Direction: "to-b"},
		Fonts:     models.ThemeFonts{Heading: "Inter", Body: "Inter", HeadingWeight: 700, BodyWeight: 400, Size: "md"},
		Layout:    models.ThemeLayout{BorderRadius: "md", Spacing: "normal", ButtonStyle: "filled", CardStyle: "flat", MaxWidth: 640},
	},
	{
		ID:   "midnight",
		Name: "Midnight",
		Colors: models.ThemeColors{
			Primary: "#a78bfa", Secondary: "#c4b5fd", Background: "#0f172a", Surface: "#1e293b",
			Text: "#f8fafc", TextSecondary: "#94a3b8", Accent: "#f472b6", Border: "#334155",
		},
		Gradients: models.ThemeGradients{Enabled: true, Background: "linear-gradient(180deg, #0f172a, #1e1b4b)", Button: "linear-gradient(90deg, #7c3aed, #db2777)", Direction: "to-b"},
		Fonts:     models.ThemeFonts{Heading: "Space Grotesk", Body: "Inter", HeadingWeight: 700, BodyWeight: 400, Size: "md"},
		Layout:    models.ThemeLayout{BorderRadius: "lg", Spacing: "normal", ButtonStyle: "soft", CardStyle: "glass", MaxWidth: 640},
	},
	{
		ID:   "sunset",
		Name: "Sunset",
		Colors: models.ThemeColors{
			Primary: "#ea580c", Secondary: "#f59e0b", Background: "#fff7ed", Surface: "#ffedd5",
			Text: "#431407", TextSecondary: "#9a3412", Accent: "#db2777", Border: "#fed7aa",
		},
		Gradients: models.ThemeGradients{Enabled: true, Background: "linear-gradient(135deg, #fff7ed, #fde68a)", Button: "linear-gradient(90deg, #f97316, #db2777)", Direction: "to-br"},
		Fonts:     models.ThemeFonts{Heading: "Poppins", Body: "Poppins", HeadingWeight: 600, BodyWeight: 400, Size: "md"},
		Layout:    models.ThemeLayout{BorderRadius: "full", Spacing: "relaxed", ButtonStyle: "shadow", CardStyle: "elevated", MaxWidth: 600},
	},
	{
		ID:   "ocean",
		Name: "Ocean",
		Colors: models.ThemeColors{
			Primary: "#0369a1", Secondary: "#0ea5e9", Background: "#f0f9ff", Surface: "#e0f2fe",
			Text: "#0c4a6e", TextSecondary: "#0369a1", Accent: "#14b8a6", Border: "#bae6fd",
		},
		Gradients: models.ThemeGradients{Direction: "to-b"},
		Fonts:     models.ThemeFonts{Heading: "Nunito", Body: "Nunito", HeadingWeight: 800, BodyWeight: 400, Size: "md"},
		Layout:    models.ThemeLayout{BorderRadius: "lg", Spacing: "normal", ButtonStyle: "outline", CardStyle: "flat", MaxWidth: 640},
	},
	{
		ID:   "forest",
		Name: "Forest",
		Colors: models.ThemeColors{
			Primary: "#166534", Secondary: "#4d7c0f", Background: "#f7fee7", Surface: "#ecfccb",
			Text: "#14532d", TextSecondary: "#3f6212", Accent: "#ca8a04", Border: "#d9f99d",
		},
		Gradients: models.ThemeGradients{Direction: "to-b"},
		Fonts:     models.ThemeFonts{Heading: "Merriweather", Body: "Source Sans 3", HeadingWeight: 700, BodyWeight: 400, Size: "lg"},
		Layout:    models.ThemeLayout{BorderRadius: "sm", Spacing: "compact", ButtonStyle: "filled", CardStyle: "elevated", MaxWidth: 560},
	},
}

// Presets returns the built-in catalogue in display order.
func Presets() []Preset {
	out := make([]Preset, len(catalogue))
	copy(out, catalogue)
	return out
}

// LookupPreset returns the preset with the given id.
func LookupPreset(id string) (Preset, bool) {
	for _, p := range catalogue {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultPreset returns the fallback preset.
func DefaultPreset() Preset {
	return catalogue[0]
}
