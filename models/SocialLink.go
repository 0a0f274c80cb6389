package models

// SocialLink is an entry in a profile's ordered link list.
type SocialLink struct {
	Model
	ProfileID   string  `gorm:"type:varchar(36);index;not null" json:"profileId"`
	Platform    string  `gorm:"size:50;not null" json:"platform"`
	Title       string  `gorm:"size:100;not null" json:"title"`
	URL         string  `gorm:"size:2048;not null" json:"url"`
	Description *string `gorm:"size:500" json:"description"`
	SortOrder   int     `gorm:"column:sort_order;not null" json:"order"`
	IsActive    bool    `gorm:"not null" json:"isActive"`
	Clicks      int64   `gorm:"not null" json:"clicks"`
}
