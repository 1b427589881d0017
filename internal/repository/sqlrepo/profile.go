package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
)

type profileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := r.db.Rebind(`
		INSERT INTO profiles (user_id, display_name, bio, avatar_url, icon, is_public, birth_date, show_birth_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		p.UserID,
		p.DisplayName,
		p.Bio,
		p.AvatarURL,
		p.Icon,
		p.IsPublic,
		p.BirthDate,
		p.ShowBirthDate,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return nil, wrap(err, "failed to create profile")
	}
	return p, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, display_name, bio, avatar_url, icon, is_public, birth_date, show_birth_date, created_at, updated_at
		FROM profiles
		WHERE user_id = ?`)

	p := &models.Profile{}
	if err := r.db.GetContext(ctx, p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err, "failed to get profile")
	}
	return p, nil
}

func (r *profileRepository) Update(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := r.db.Rebind(`
		UPDATE profiles
		SET display_name = ?, bio = ?, avatar_url = ?, icon = ?, is_public = ?,
			birth_date = ?, show_birth_date = ?, updated_at = ?
		WHERE id = ?`)

	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		p.DisplayName,
		p.Bio,
		p.AvatarURL,
		p.Icon,
		p.IsPublic,
		p.BirthDate,
		p.ShowBirthDate,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return nil, wrap(err, "failed to update profile")
	}
	return p, nil
}
