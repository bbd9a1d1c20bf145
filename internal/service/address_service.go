package service

import (
	"context"
	"strings"

	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/repository"
)

// AddressService manages the user's address book. At most one address per
// user is the default.
type AddressService struct {
	store  repository.Store
	logger *logging.Logger
}

func NewAddressService(store repository.Store) *AddressService {
	return &AddressService{
		store:  store,
		logger: logging.NewLogger("address-service"),
	}
}

func (s *AddressService) List(ctx context.Context, userID string) ([]*models.ShippingAddress, error) {
	return s.store.Repos().Addresses.ListByUser(ctx, userID)
}

func (s *AddressService) Get(ctx context.Context, userID string, id int64) (*models.ShippingAddress, error) {
	return s.store.Repos().Addresses.GetForUser(ctx, id, userID)
}

// Create validates and saves a new address.
func (s *AddressService) Create(ctx context.Context, userID string, addr *models.ShippingAddress) (*models.ShippingAddress, error) {
	var saved *models.ShippingAddress
	err := s.store.WithinTx(ctx, func(repos *repository.Repositories) error {
		var err error
		saved, err = createAddress(ctx, repos, userID, addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shipping address created", logging.Fields{
		"user_id":    userID,
		"address_id": saved.ID,
		"is_default": saved.IsDefault,
	})
	return saved, nil
}

// createAddress persists addr for userID. When addr is the new default the
// previous default is cleared first, within the caller's transaction.
func createAddress(ctx context.Context, repos *repository.Repositories, userID string, addr *models.ShippingAddress) (*models.ShippingAddress, error) {
	if addr == nil {
		return nil, errors.NewValidationError("address", "shipping address is required")
	}
	a := *addr
	a.ID = 0
	a.UserID = userID
	trimAddress(&a)
	if err := ValidateAddress(&a); err != nil {
		return nil, err
	}

	if a.IsDefault {
		if err := repos.Addresses.ClearDefault(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := repos.Addresses.Insert(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Update applies an allow-listed field patch.
func (s *AddressService) Update(ctx context.Context, userID string, id int64, patch map[string]string) (*models.ShippingAddress, error) {
	if len(patch) == 0 {
		return nil, errors.NewValidationError("patch", "at least one field is required")
	}

	var updated *models.ShippingAddress
	err := s.store.WithinTx(ctx, func(repos *repository.Repositories) error {
		addr, err := repos.Addresses.GetForUser(ctx, id, userID)
		if err != nil {
			return err
		}
		if field, ok := addr.ApplyPatch(patch); !ok {
			return errors.NewValidationError(field, field+" is not an updatable field; allowed: "+
				strings.Join(models.AddressPatchFields(), ", "))
		}
		trimAddress(addr)
		if err := ValidateAddress(addr); err != nil {
			return err
		}
		if err := repos.Addresses.Update(ctx, addr); err != nil {
			return err
		}
		updated = addr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shipping address updated", logging.Fields{
		"user_id":    userID,
		"address_id": id,
	})
	return updated, nil
}

// SetDefault makes the address the user's only default.
func (s *AddressService) SetDefault(ctx context.Context, userID string, id int64) (*models.ShippingAddress, error) {
	var addr *models.ShippingAddress
	err := s.store.WithinTx(ctx, func(repos *repository.Repositories) error {
		var err error
		if addr, err = repos.Addresses.GetForUser(ctx, id, userID); err != nil {
			return err
		}
		if err := repos.Addresses.ClearDefault(ctx, userID); err != nil {
			return err
		}
		if err := repos.Addresses.SetDefault(ctx, id, userID); err != nil {
			return err
		}
		addr.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Default shipping address changed", logging.Fields{
		"user_id":    userID,
		"address_id": id,
	})
	return addr, nil
}
