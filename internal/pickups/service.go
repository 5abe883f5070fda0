package pickups

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IssuedCredential is the one response that carries the plaintext code.
// Only the hash is persisted.
type IssuedCredential struct {
	PickupID  uuid.UUID
	OrderID   uuid.UUID
	Code      string
	Token     string
	ExpiresAt time.Time
}

// VerifyInput carries either the signed token or the numeric code.
type VerifyInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Code    string
	Token   string
}

// Service issues and verifies pickup credentials.
type Service interface {
	Issue(ctx context.Context, orderID uuid.UUID) (*IssuedCredential, error)
	Verify(ctx context.Context, input VerifyInput) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error)
}

// ServiceParams collects the pickup service's collaborators.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
	Config config.PickupConfig
	Now    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	cfg    config.PickupConfig
	now    func() time.Time
}

// NewService builds the pickup credential service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("pickups repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Config.Secret == "" {
		return nil, fmt.Errorf("pickup token secret required")
	}
	if params.Config.TTL <= 0 {
		params.Config.TTL = 30 * time.Minute
	}
	if params.Config.MaxAttempts <= 0 {
		params.Config.MaxAttempts = 5
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		cfg:    params.Config,
		now:    params.Now,
	}, nil
}

// Issue creates the pickup credential for a paid order. An unexpired
// credential is returned as-is without the plaintext code; an expired,
// unverified one is replaced.
func (s *service) Issue(ctx context.Context, orderID uuid.UUID) (*IssuedCredential, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, fmt.Errorf("lookup order %s: %w", orderID, err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pickup credentials require a paid order")
	}

	now := s.now()
	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("lookup pickup for order %s: %w", orderID, err)
	}
	if existing != nil {
		if existing.Verified {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "pickup already verified")
		}
		if existing.ExpiresAt.After(now) {
			return &IssuedCredential{
				PickupID:  existing.ID,
				OrderID:   orderID,
				Token:     existing.Token,
				ExpiresAt: existing.ExpiresAt,
			}, nil
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate pickup code: %w", err)
	}
	expiresAt := now.Add(s.cfg.TTL)
	token, err := MintCredentialToken(s.cfg, now, orderID, code, expiresAt)
	if err != nil {
		return nil, err
	}

	pickup := &models.OrderPickup{
		OrderID:     orderID,
		CodeHash:    hashCode(code),
		Token:       token,
		ExpiresAt:   expiresAt,
		MaxAttempts: s.cfg.MaxAttempts,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing != nil {
			if err := repo.DeletePickup(ctx, existing.ID); err != nil {
				return fmt.Errorf("replace expired pickup: %w", err)
			}
		}
		if err := repo.CreatePickup(ctx, pickup); err != nil {
			return fmt.Errorf("create pickup: %w", err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPickupCreated,
			AggregateType: enums.AggregatePickup,
			AggregateID:   pickup.ID,
			Data: payloads.PickupCreatedEvent{
				OrderID:    orderID,
				PickupID:   pickup.ID,
				CodeHint:   maskCode(code),
				ExpiresAt:  expiresAt,
				CustomerID: order.CustomerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return &IssuedCredential{
		PickupID:  pickup.ID,
		OrderID:   orderID,
		Code:      code,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify redeems a credential exactly once. A wrong code burns an attempt;
// expiry and the attempt cap are checked before any comparison. The burned
// attempt is committed by returning nil from the transaction and reporting
// the denial afterwards, so the counter survives the failed verification.
func (s *service) Verify(ctx context.Context, input VerifyInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Code == "" && input.Token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup code or token required")
	}

	var denied error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pickup, err := repo.FindByOrderIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no pickup credential for order")
			}
			return fmt.Errorf("lock pickup for order %s: %w", input.OrderID, err)
		}

		if pickup.Verified {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup already verified")
		}
		now := s.now()
		if !pickup.ExpiresAt.After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup credential expired")
		}
		if pickup.AttemptsCount >= pickup.MaxAttempts {
			return pkgerrors.New(pkgerrors.CodeExhausted, "pickup attempt limit reached")
		}

		burn := func(reason string) error {
			if err := repo.UpdatePickup(ctx, pickup.ID, map[string]any{
				"attempts_count": pickup.AttemptsCount + 1,
			}); err != nil {
				return fmt.Errorf("record failed attempt: %w", err)
			}
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "order_id", pickup.OrderID.String()), reason)
			}
			denied = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid pickup credential")
			return nil
		}

		code := input.Code
		if input.Token != "" {
			claims, err := ParseCredentialToken(s.cfg, input.Token)
			if err != nil {
				return burn("invalid pickup token")
			}
			if claims.OrderID != input.OrderID {
				return burn("token order mismatch")
			}
			code = claims.Code
		}

		if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(pickup.CodeHash)) != 1 {
			return burn("pickup code mismatch")
		}

		verifiedAt := now
		return repo.UpdatePickup(ctx, pickup.ID, map[string]any{
			"verified":    true,
			"verified_by": input.ActorID,
			"verified_at": verifiedAt,
		})
	})
	if err != nil {
		return err
	}
	return denied
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	pickup, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pickup credential for order")
		}
		return nil, err
	}
	return pickup, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func maskCode(code string) string {
	if len(code) <= 2 {
		return code
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}
