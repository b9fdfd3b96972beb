package scheme

import "context"

// CatalogReader abstracts repository operations for the service.
type CatalogReader interface {
	GetActive(ctx context.Context, id string) (Scheme, error)
	ListActive(ctx context.Context) ([]Scheme, error)
}

// Service exposes business-level scheme catalog operations.
type Service struct {
	repo CatalogReader
}

// NewService builds a Service using the provided repository.
func NewService(repo CatalogReader) *Service {
	return &Service{repo: repo}
}

// GetActive returns the active scheme for the given identifier.
func (s *Service) GetActive(ctx context.Context, id string) (Scheme, error) {
	return s.repo.GetActive(ctx, id)
}

// ListActive returns all active schemes.
func (s *Service) ListActive(ctx context.Context) ([]Scheme, error) {
	return s.repo.ListActive(ctx)
}
