package models

import (
	"strings"

	"gorm.io/gorm"
)

// Profile is a public bio page. Exactly one profile per user is the default.
type Profile struct {
	Model
	UserID          string  `gorm:"type:varchar(36);index;not null" json:"userId"`
	PageName        string  `gorm:"size:50;not null" json:"pageName"`
	PageNameKey     string  `gorm:"uniqueIndex;size:50;not null" json:"-"`
	DisplayName     string  `gorm:"size:100;not null" json:"displayName"`
	Bio             string  `gorm:"size:500" json:"bio"`
	ProfileImageURL *string `gorm:"size:2048" json:"profileImageUrl"`
	IsDefault       bool    `gorm:"not null;index" json:"isDefault"`
	ProfileViews    int64   `gorm:"not null" json:"profileViews"`
	Clicks          int64   `gorm:"not null" json:"clicks"`
}

// PageNameKey folds a page name to the form its unique index compares.
func PageNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BeforeCreate fills the identifier and the folded page name.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	p.PageNameKey = PageNameKey(p.PageName)
	return p.Model.BeforeCreate(tx)
}
