package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// ErrNotFound is returned when a ship or certificate does not exist in the
// requested company scope.
var ErrNotFound = errors.New("not found")

type ShipRepository interface {
	ListShips(ctx context.Context, companyID string) ([]*domain.Ship, error)
	GetShip(ctx context.Context, companyID, id string) (*domain.Ship, error)
	CreateShip(ctx context.Context, ship *domain.Ship) error
	UpdateShip(ctx context.Context, ship *domain.Ship) error
	DeleteShip(ctx context.Context, companyID, id string) error
	ListCompanies(ctx context.Context) ([]string, error)
}

type CertificateRepository interface {
	ListByShip(ctx context.Context, shipID string) ([]*domain.Certificate, error)
	GetCertificate(ctx context.Context, id string) (*domain.Certificate, error)
	CreateCertificate(ctx context.Context, cert *domain.Certificate) error
	UpdateCertificate(ctx context.Context, cert *domain.Certificate) error
	DeleteCertificate(ctx context.Context, id string) error

	// ListFleet returns every ship of the company with its certificates.
	ListFleet(ctx context.Context, companyID string) ([]domain.ShipCertificates, error)
}
