package models

import "time"

// Profile holds the public-facing details of a user. Exactly one exists per user.
type Profile struct {
	ID            int64      `json:"id" db:"id"`
	UserID        int64      `json:"user_id" db:"user_id"`
	DisplayName   string     `json:"display_name" db:"display_name"`
	Bio           string     `json:"bio" db:"bio"`
	AvatarURL     string     `json:"avatar_url" db:"avatar_url"`
	Icon          string     `json:"icon" db:"icon"`
	IsPublic      bool       `json:"is_public" db:"is_public"`
	BirthDate     *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	ShowBirthDate bool       `json:"show_birth_date" db:"show_birth_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicView returns a copy safe to show to other users, honouring the
// birth date visibility setting.
func (p *Profile) PublicView() *Profile {
	cp := *p
	if !p.ShowBirthDate {
		cp.BirthDate = nil
	}
	return &cp
}
