package models

import "gorm.io/datatypes"

// ThemeColors holds the palette of a theme as hex colour strings.
type ThemeColors struct {
	Primary       string `json:"primary"`
	Secondary     string `json:"secondary"`
	Background    string `json:"background"`
	Surface       string `json:"surface"`
	Text          string `json:"text"`
	TextSecondary string `json:"textSecondary"`
	Accent        string `json:"accent"`
	Border        string `json:"border"`
}

// ThemeGradients configures optional gradient fills.
type ThemeGradients struct {
	Enabled    bool   `json:"enabled"`
	Background string `json:"background"`
	Button     string `json:"button"`
	Direction  string `json:"direction"`
}

// ThemeFonts configures typography.
type ThemeFonts struct {
	Heading       string `json:"heading"`
	Body          string `json:"body"`
	HeadingWeight int    `json:"headingWeight"`
	BodyWeight    int    `json:"bodyWeight"`
	Size          string `json:"size"`
}

// ThemeLayout configures spacing and component styles.
type ThemeLayout struct {
	BorderRadius string `json:"borderRadius"`
	Spacing      string `json:"spacing"`
	ButtonStyle  string `json:"buttonStyle"`
	CardStyle    string `json:"cardStyle"`
	MaxWidth     int    `json:"maxWidth"`
}

// Theme is a visual configuration for a profile. At most one theme per profile is active.
type Theme struct {
	Model
	ProfileID string                             `gorm:"type:varchar(36);index;not null" json:"profileId"`
	Name      string                             `gorm:"size:100;not null" json:"name"`
	Colors    datatypes.JSONType[ThemeColors]    `json:"colors"`
	Gradients datatypes.JSONType[ThemeGradients] `json:"gradients"`
	Fonts     datatypes.JSONType[ThemeFonts]     `json:"fonts"`
	Layout    datatypes.JSONType[ThemeLayout]    `json:"layout"`
	IsActive  bool                               `gorm:"not null" json:"isActive"`
}
