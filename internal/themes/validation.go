package themes

import (
	"regexp"
	"slices"

	"linkfolio/internal/validate"
	"linkfolio/models"
)

var (
	hexColor     = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	fontName     = regexp.MustCompile(`^[A-Za-z0-9 '-]{1,50}$`)
	gradientExpr = regexp.MustCompile(`^[A-Za-z0-9#(),.%\s-]{0,200}$`)

	directions    = []string{"to-t", "to-b", "to-l", "to-r", "to-tl", "to-tr", "to-bl", "to-br"}
	fontSizes     = []string{"sm", "md", "lg"}
	borderRadii   = []string{"none", "sm", "md", "lg", "full"}
	spacings      = []string{"compact", "normal", "relaxed"}
	buttonStyles  = []string{"filled", "outline", "soft", "shadow"}
	cardStyles    = []string{"flat", "elevated", "glass"}
	minMaxWidth   = 320
	maxMaxWidth   = 1200
	minFontWeight = 100
	maxFontWeight = 900
)

func checkColors(errs validate.Errors, c models.ThemeColors) {
	fields := map[string]string{
		"primary":       c.Primary,
		"secondary":     c.Secondary,
		"background":    c.Background,
		"surface":       c.Surface,
		"text":          c.Text,
		"textSecondary": c.TextSecondary,
		"accent":        c.Accent,
		"border":        c.Border,
	}
	for name, value := range fields {
		errs.Check(hexColor.MatchString(value), "colors."+name, "must be a hex colour such as #1a2b3c")
	}
}

func checkGradients(errs validate.Errors, g models.ThemeGradients) {
	errs.Check(slices.Contains(directions, g.Direction), "gradients.direction", "unsupported gradient direction")
	errs.Check(gradientExpr.MatchString(g.Background), "gradients.background", "invalid gradient")
	errs.Check(gradientExpr.MatchString(g.Button), "gradients.button", "invalid gradient")
	if g.Enabled {
		errs.Check(g.Background != "" || g.Button != "", "gradients.background", "enabled gradients need a background or button gradient")
	}
}

func checkWeight(w int) bool {
	return w >= minFontWeight && w <= maxFontWeight && w%100 == 0
}

func checkFonts(errs validate.Errors, f models.ThemeFonts) {
	errs.Check(fontName.MatchString(f.Heading), "fonts.heading", "invalid font name")
	errs.Check(fontName.MatchString(f.Body), "fonts.body", "invalid font name")
	errs.Check(checkWeight(f.HeadingWeight), "fonts.headingWeight", "weight must be a multiple of 100 between 100 and 900")
	errs.Check(checkWeight(f.BodyWeight), "fonts.bodyWeight", "weight must be a multiple of 100 between 100 and 900")
	errs.Check(slices.Contains(fontSizes, f.Size), "fonts.size", "size must be sm, md or lg")
}

func checkLayout(errs validate.Errors, l models.ThemeLayout) {
	errs.Check(slices.Contains(borderRadii, l.BorderRadius), "layout.borderRadius", "unsupported border radius")
	errs.Check(slices.Contains(spacings, l.Spacing), "layout.spacing", "unsupported spacing")
	errs.Check(slices.Contains(buttonStyles, l.ButtonStyle), "layout.buttonStyle", "unsupported button style")
	errs.Check(slices.Contains(cardStyles, l.CardStyle), "layout.cardStyle", "unsupported card style")
	errs.Check(l.MaxWidth >= minMaxWidth && l.MaxWidth <= maxMaxWidth, "layout.maxWidth", "max width must be between 320 and 1200")
}
