package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/validate"
)

const minPasswordLen = 8

// Register creates an account together with its profile
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	errs := &validate.Errors{}
	if at := strings.IndexByte(email, '@'); at < 1 || at == len(email)-1 {
		errs.Add("email", "Enter a valid email address")
	}
	if len(password) < minPasswordLen {
		errs.Add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.Users.Create(ctx, &models.User{Email: email, PasswordHash: string(hash)})
	if err != nil {
		if repository.IsConflict(err, repository.ConstraintUserEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register %s: %w", email, err)
	}

	profile, err := s.Profiles.Create(ctx, &models.Profile{UserID: user.ID, IsPublic: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile for user %d: %w", user.ID, err)
	}
	user.Profile = profile

	s.logger.WithField("user_id", user.ID).Info("Registered new user")
	return user, nil
}

// Authenticate checks credentials and returns the matching active user
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user with their profile
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	profile, err := s.ensureProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// ensureProfile returns the profile of userID, creating it if it is missing
func (s *Service) ensureProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	profile, err := s.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}
	if profile != nil {
		return profile, nil
	}

	profile, err = s.Profiles.Create(ctx, &models.Profile{UserID: userID, IsPublic: true})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.Profiles.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create profile for user %d: %w", userID, err)
	}
	return profile, nil
}

// ProfilePatch holds optional profile changes
type ProfilePatch struct {
	DisplayName   *string `json:"display_name"`
	Bio           *string `json:"bio"`
	AvatarURL     *string `json:"avatar_url"`
	Icon          *string `json:"icon"`
	IsPublic      *bool   `json:"is_public"`
	BirthDate     *string `json:"birth_date"`
	ShowBirthDate *bool   `json:"show_birth_date"`
}

// UpdateProfile applies patch to the actor's own profile
func (s *Service) UpdateProfile(ctx context.Context, actor *models.User, patch ProfilePatch) (*models.Profile, error) {
	profile, err := s.ensureProfile(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	in := validate.ProfileInput{
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		AvatarURL:   profile.AvatarURL,
		Icon:        profile.Icon,
	}
	setString(&in.DisplayName, patch.DisplayName)
	setString(&in.Bio, patch.Bio)
	setString(&in.AvatarURL, patch.AvatarURL)
	setString(&in.Icon, patch.Icon)

	verr := validate.Profile(&in)
	errs, _ := verr.(*validate.Errors)
	if errs == nil {
		errs = &validate.Errors{}
	}
	birth, ok := parseDate(patch.BirthDate, profile.BirthDate)
	if !ok {
		errs.Add("birth_date", "Enter a valid date (YYYY-MM-DD)")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	profile.DisplayName = in.DisplayName
	profile.Bio = in.Bio
	profile.AvatarURL = in.AvatarURL
	profile.Icon = in.Icon
	profile.BirthDate = birth
	if patch.IsPublic != nil {
		profile.IsPublic = *patch.IsPublic
	}
	if patch.ShowBirthDate != nil {
		profile.ShowBirthDate = *patch.ShowBirthDate
	}

	return s.Profiles.Update(ctx, profile)
}

// PublicProfile returns the profile of userID as seen by viewer. Private
// profiles are only visible to their owner.
func (s *Service) PublicProfile(ctx context.Context, viewer *models.User, userID int64) (*models.Profile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	self := viewer != nil && viewer.ID == user.ID
	if !user.Profile.IsPublic && !self {
		return nil, ErrNotFound
	}
	if self {
		return user.Profile, nil
	}
	return user.Profile.PublicView(), nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// parseDate applies an optional YYYY-MM-DD value; an empty string clears it
func parseDate(v *string, current *time.Time) (*time.Time, bool) {
	if v == nil {
		return current, true
	}
	raw := strings.TrimSpace(*v)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return current, false
	}
	return &t, true
}
