package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages products, clients and staff users.
type CatalogService struct {
	store        domain.Store
	availability *AvailabilityCalculator
	logger       *zerolog.Logger
}

func NewCatalogService(store domain.Store, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{store: store, availability: NewAvailabilityCalculator(), logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Int64("product_id", p.ID).Str("name", p.Name).Int64("stock", p.Stock).Msg("product created")
	return nil
}

// UpdateProduct changes catalog data. Existing rentals keep their frozen prices.
// Stock may not drop below the peak quantity active rentals hold; the check and
// the write share one transaction with the product row locked.
func (s *CatalogService) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.LockProducts(ctx, []int64{p.ID}); err != nil {
			return err
		}
		existing, err := tx.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return &NotFoundError{Entity: "product", ID: p.ID}
		}
		if p.Stock < existing.Stock {
			peak, err := s.availability.PeakCommitted(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if p.Stock < peak {
				return &StockBelowCommittedError{ProductID: p.ID, Stock: p.Stock, Committed: peak}
			}
		}
		return tx.UpdateProduct(ctx, p)
	})
}

// DeleteProduct removes a product no rental has ever used. A missing product
// yields (nil, nil).
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, domain.ErrInUse) {
			return nil, &InUseError{Entity: "product", ID: id}
		}
		return nil, err
	}
	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	return p, nil
}

// SyncProducts upserts the configured catalog by id.
func (s *CatalogService) SyncProducts(ctx context.Context, products []models.Product) error {
	for i := range products {
		p := products[i]
		existing, err := s.store.GetProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			err = s.store.CreateProduct(ctx, &p)
		} else {
			if p.Stock < existing.Stock {
				s.warnStockCut(ctx, &p)
			}
			err = s.store.UpdateProduct(ctx, &p)
		}
		if err != nil {
			return fmt.Errorf("sync product %d: %w", p.ID, err)
		}
	}
	s.logger.Info().Int("count", len(products)).Msg("product catalog synced")
	return nil
}

// warnStockCut logs a configured stock that no longer covers active rentals.
// Sync still applies it: the configuration describes what is physically on hand.
func (s *CatalogService) warnStockCut(ctx context.Context, p *models.Product) {
	peak, err := s.availability.PeakCommitted(ctx, s.store, p.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", p.ID).Msg("failed to check committed stock")
		return
	}
	if p.Stock < peak {
		s.logger.Warn().Int64("product_id", p.ID).Int64("stock", p.Stock).Int64("committed", peak).
			Msg("synced stock is below the quantity held by active rentals")
	}
}

func (s *CatalogService) ListClients(ctx context.Context) ([]*models.Client, error) {
	return s.store.ListClients(ctx)
}

func (s *CatalogService) CreateClient(ctx context.Context, c *models.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &InvalidFieldError{Field: "name", Reason: "must not be empty"}
	}
	return s.store.CreateClient(ctx, c)
}

func (s *CatalogService) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Entity: "client", ID: id}
	}
	return c, nil
}

func (s *CatalogService) UpdateClient(ctx context.Context, c *models.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &InvalidFieldError{Field: "name", Reason: "must not be empty"}
	}
	if _, err := s.GetClient(ctx, c.ID); err != nil {
		return err
	}
	return s.store.UpdateClient(ctx, c)
}

// DeleteClient refuses clients with rentals on record. A missing client yields (nil, nil).
func (s *CatalogService) DeleteClient(ctx context.Context, id int64) (*models.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		if errors.Is(err, domain.ErrInUse) {
			return nil, &InUseError{Entity: "client", ID: id}
		}
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *CatalogService) CreateUser(ctx context.Context, u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return &InvalidFieldError{Field: "username", Reason: "must not be empty"}
	}
	return s.store.CreateUser(ctx, u)
}

func (s *CatalogService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, &NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func (s *CatalogService) UpdateUser(ctx context.Context, u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return &InvalidFieldError{Field: "username", Reason: "must not be empty"}
	}
	if _, err := s.GetUser(ctx, u.ID); err != nil {
		return err
	}
	return s.store.UpdateUser(ctx, u)
}

func (s *CatalogService) DeleteUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrInUse) {
			return nil, &InUseError{Entity: "user", ID: id}
		}
		return nil, err
	}
	return u, nil
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return &InvalidFieldError{Field: "name", Reason: "must not be empty"}
	case p.Stock < 0:
		return &InvalidFieldError{Field: "stock", Reason: "must not be negative"}
	case p.Price < 0:
		return &InvalidFieldError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}
