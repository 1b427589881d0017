package service

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/audit"
	"github.com/Kerhoff/wishlister/internal/enrich"
	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/metrics"
	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/policy"
	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/repository/sqlrepo"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrDuplicateTitle     = errors.New("you already have a wishlist with this title")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")

	ErrJobNotFound    = importer.ErrJobNotFound
	ErrUploadTooLarge = importer.ErrUploadTooLarge
	ErrEmptyUpload    = importer.ErrEmptyUpload
)

// PageSize is the number of wishlists per listing page
const PageSize = 7

// maxAttempts bounds slug and token regeneration after unique conflicts
const maxAttempts = 20

// Repositories groups the storage dependencies of the Service
type Repositories struct {
	Users     repository.UserRepository
	Profiles  repository.ProfileRepository
	Wishlists repository.WishlistRepository
	Items     repository.ItemRepository
	Access    repository.AccessRepository
}

// NewSQLRepositories builds every repository on top of db
func NewSQLRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Users:     sqlrepo.NewUserRepository(db),
		Profiles:  sqlrepo.NewProfileRepository(db),
		Wishlists: sqlrepo.NewWishlistRepository(db),
		Items:     sqlrepo.NewItemRepository(db),
		Access:    sqlrepo.NewAccessRepository(db),
	}
}

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	logger  *logrus.Logger
	audit   audit.Logger
	metrics *metrics.Metrics

	Users     repository.UserRepository
	Profiles  repository.ProfileRepository
	Wishlists repository.WishlistRepository
	Items     repository.ItemRepository
	Access    repository.AccessRepository

	Policy   *policy.Engine
	Enricher enrich.Enricher
	Importer *importer.Pipeline
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, repos Repositories, auditLog audit.Logger, m *metrics.Metrics, enricher enrich.Enricher) *Service {
	return &Service{
		logger:    logger,
		audit:     auditLog,
		metrics:   m,
		Users:     repos.Users,
		Profiles:  repos.Profiles,
		Wishlists: repos.Wishlists,
		Items:     repos.Items,
		Access:    repos.Access,
		Policy:    policy.NewEngine(repos.Access),
		Enricher:  enricher,
	}
}

// AttachImporter wires an import pipeline that stores items through s
func (s *Service) AttachImporter(jobs importer.JobStore, opts importer.Options) *importer.Pipeline {
	s.Importer = importer.NewPipeline(s, s.Enricher, jobs, s.audit, s.metrics, s.logger, opts)
	return s.Importer
}

// denied records a refused access and returns ErrForbidden
func (s *Service) denied(actor *models.User, wl *models.Wishlist, action string, reason policy.Reason) error {
	s.metrics.ObserveDenied()
	s.audit.Log(audit.AccessDenied, actor, wl, map[string]any{
		"action": action,
		"reason": string(reason),
	})
	return ErrForbidden
}

// change is one field difference recorded in update audits
type change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

func track(changes map[string]change, field string, from, to any) {
	if from != to {
		changes[field] = change{From: from, To: to}
	}
}
