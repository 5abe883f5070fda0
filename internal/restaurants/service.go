package restaurants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

type subaccountGateway interface {
	CreateSubaccount(ctx context.Context, params flutterwave.SubaccountParams) (*flutterwave.Subaccount, error)
}

// BankDetailsInput updates a restaurant's settlement account.
type BankDetailsInput struct {
	RestaurantID  uuid.UUID `json:"-"`
	BankCode      string    `json:"bank_code" validate:"required"`
	AccountNumber string    `json:"account_number" validate:"required,min=10,max=10"`
}

// Service reads restaurant data for the saga and provisions gateway
// subaccounts so charges can split at source.
type Service interface {
	Get(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
	OwnerUserID(ctx context.Context, restaurantID uuid.UUID) (uuid.UUID, error)
	SetBankDetails(ctx context.Context, input BankDetailsInput) (*models.Restaurant, error)
}

// ServiceParams collects the restaurant service's collaborators.
type ServiceParams struct {
	Repo    Repository
	Gateway subaccountGateway
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	gateway subaccountGateway
	logg    *logger.Logger
}

// NewService builds the restaurant service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("restaurants repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{repo: params.Repo, gateway: params.Gateway, logg: params.Logger}, nil
}

func (s *service) Get(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	restaurant, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, err
	}
	return restaurant, nil
}

func (s *service) OwnerUserID(ctx context.Context, restaurantID uuid.UUID) (uuid.UUID, error) {
	restaurant, err := s.Get(ctx, restaurantID)
	if err != nil {
		return uuid.Nil, err
	}
	return restaurant.OwnerUserID, nil
}

// SetBankDetails stores the settlement account and provisions the gateway
// subaccount used for split charges and transfers.
func (s *service) SetBankDetails(ctx context.Context, input BankDetailsInput) (*models.Restaurant, error) {
	if input.BankCode == "" || input.AccountNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank code and account number required")
	}
	restaurant, err := s.Get(ctx, input.RestaurantID)
	if err != nil {
		return nil, err
	}

	subaccount, err := s.gateway.CreateSubaccount(ctx, flutterwave.SubaccountParams{
		BusinessName:  restaurant.Name,
		BankCode:      input.BankCode,
		AccountNumber: input.AccountNumber,
		Country:       "NG",
		SplitType:     "flat",
		SplitValue:    "0",
	})
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"bank_code":      input.BankCode,
		"account_number": input.AccountNumber,
		"subaccount_id":  subaccount.SubaccountID,
	}
	if err := s.repo.Update(ctx, restaurant.ID, updates); err != nil {
		return nil, fmt.Errorf("store bank details: %w", err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"restaurant_id": restaurant.ID.String(),
			"subaccount_id": subaccount.SubaccountID,
		})
		s.logg.Info(logCtx, "restaurant subaccount provisioned")
	}

	restaurant.BankCode = &input.BankCode
	restaurant.AccountNumber = &input.AccountNumber
	restaurant.SubaccountID = &subaccount.SubaccountID
	return restaurant, nil
}
