// Package memory is an in-process implementation of the ship and
// certificate repositories, used by tests and local dry runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/repository"
)

// Store holds copies of ships and certificates. It satisfies both
// repository.ShipRepository and repository.CertificateRepository.
type Store struct {
	mu    sync.RWMutex
	ships map[string]domain.Ship
	certs map[string]domain.Certificate
}

var (
	_ repository.ShipRepository        = (*Store)(nil)
	_ repository.CertificateRepository = (*Store)(nil)
)

func New() *Store {
	return &Store{
		ships: make(map[string]domain.Ship),
		certs: make(map[string]domain.Certificate),
	}
}

func (s *Store) ListShips(_ context.Context, companyID string) ([]*domain.Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shipsOf(companyID), nil
}

func (s *Store) GetShip(_ context.Context, companyID, id string) (*domain.Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ship, ok := s.ships[id]
	if !ok || ship.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return &ship, nil
}

func (s *Store) CreateShip(_ context.Context, ship *domain.Ship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ships[ship.ID] = *ship
	return nil
}

func (s *Store) UpdateShip(_ context.Context, ship *domain.Ship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.ships[ship.ID]
	if !ok || current.CompanyID != ship.CompanyID {
		return repository.ErrNotFound
	}
	s.ships[ship.ID] = *ship
	return nil
}

// DeleteShip removes the ship and its certificates.
func (s *Store) DeleteShip(_ context.Context, companyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ship, ok := s.ships[id]
	if !ok || ship.CompanyID != companyID {
		return repository.ErrNotFound
	}
	delete(s.ships, id)
	for certID, cert := range s.certs {
		if cert.ShipID == id {
			delete(s.certs, certID)
		}
	}
	return nil
}

func (s *Store) ListCompanies(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, ship := range s.ships {
		if !seen[ship.CompanyID] {
			seen[ship.CompanyID] = true
			out = append(out, ship.CompanyID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListByShip(_ context.Context, shipID string) ([]*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.certsOf(shipID), nil
}

func (s *Store) GetCertificate(_ context.Context, id string) (*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cert, nil
}

func (s *Store) CreateCertificate(_ context.Context, cert *domain.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ships[cert.ShipID]; !ok {
		return repository.ErrNotFound
	}
	s.certs[cert.ID] = *cert
	return nil
}

func (s *Store) UpdateCertificate(_ context.Context, cert *domain.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[cert.ID]; !ok {
		return repository.ErrNotFound
	}
	s.certs[cert.ID] = *cert
	return nil
}

func (s *Store) DeleteCertificate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.certs, id)
	return nil
}

func (s *Store) ListFleet(_ context.Context, companyID string) ([]domain.ShipCertificates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ships := s.shipsOf(companyID)
	out := make([]domain.ShipCertificates, 0, len(ships))
	for _, ship := range ships {
		out = append(out, domain.ShipCertificates{Ship: ship, Certificates: s.certsOf(ship.ID)})
	}
	return out, nil
}

func (s *Store) shipsOf(companyID string) []*domain.Ship {
	out := make([]*domain.Ship, 0)
	for _, ship := range s.ships {
		if ship.CompanyID == companyID {
			ship := ship
			out = append(out, &ship)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) certsOf(shipID string) []*domain.Certificate {
	out := make([]*domain.Certificate, 0)
	for _, cert := range s.certs {
		if cert.ShipID == shipID {
			cert := cert
			out = append(out, &cert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
