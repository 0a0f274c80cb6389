package models

import "time"

// Session stores a JSON encoded session payload keyed by its opaque token.
type Session struct {
	Token  string    `gorm:"primaryKey;size:64"`
	Data   string    `gorm:"type:text;not null"`
	Expiry time.Time `gorm:"index;not null"`
}

// All returns every model managed by the schema, in migration order.
func All() []any {
	return []any{
		&User{},
		&Profile{},
		&SocialLink{},
		&Theme{},
		&Session{},
	}
}
