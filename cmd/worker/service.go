package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pspb "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/chopnow/chopnow-backend/internal/inventory"
	"github.com/chopnow/chopnow-backend/internal/payments"
	"github.com/chopnow/chopnow-backend/internal/payouts"
	"github.com/chopnow/chopnow-backend/internal/pickups"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/pubsub"
	"github.com/chopnow/chopnow-backend/pkg/redis"
)

// envelopeConsumer is the shared shape of the saga consumers. Each one
// decides for itself which event types it reacts to.
type envelopeConsumer interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

type ServiceParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *db.Client
	Redis        *redis.Client
	PubSub       *pubsub.Client
	Inventory    *inventory.Consumer
	Pickups      *pickups.Consumer
	Payments     *payments.Consumer
	PayoutWorker *payouts.Worker
}

type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           *db.Client
	redis        *redis.Client
	pubsub       *pubsub.Client
	inventory    *inventory.Consumer
	pickups      *pickups.Consumer
	payments     *payments.Consumer
	payoutWorker *payouts.Worker
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Inventory == nil {
		return nil, errors.New("inventory consumer is required")
	}
	if params.Pickups == nil {
		return nil, errors.New("pickups consumer is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments consumer is required")
	}
	if params.PayoutWorker == nil {
		return nil, errors.New("payout worker is required")
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		redis:        params.Redis,
		pubsub:       params.PubSub,
		inventory:    params.Inventory,
		pickups:      params.Pickups,
		payments:     params.Payments,
		payoutWorker: params.PayoutWorker,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// ordersConsumers handles events published to the orders topic:
// order.confirmed and order.cancelled feed the inventory ledger, and
// order.awaiting_payment feeds payment initiation. A failure in either
// consumer nacks the message so both see the redelivery, which the
// per-consumer idempotency guard absorbs.
func (s *Service) ordersConsumers() []envelopeConsumer {
	return []envelopeConsumer{s.inventory, s.payments}
}

// paymentsConsumers handles events published to the payments topic:
// payment.success triggers pickup credential issuance.
func (s *Service) paymentsConsumers() []envelopeConsumer {
	return []envelopeConsumer{s.pickups}
}

// Run drives the consumer loops until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.receive(groupCtx, s.pubsub.OrdersSubscription(), "orders", s.ordersConsumers()...)
	})
	group.Go(func() error {
		return s.receive(groupCtx, s.pubsub.PaymentsSubscription(), "payments", s.paymentsConsumers()...)
	})
	group.Go(func() error {
		return s.payoutWorker.Run(groupCtx)
	})

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "worker stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return err
}

func (s *Service) receive(ctx context.Context, sub *pspb.Subscriber, name string, consumers ...envelopeConsumer) error {
	if sub == nil {
		return fmt.Errorf("%s subscription not configured", name)
	}
	return sub.Receive(ctx, func(msgCtx context.Context, msg *pspb.Message) {
		if s.dispatch(msgCtx, name, msg, consumers) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (s *Service) dispatch(ctx context.Context, name string, msg *pspb.Message, consumers []envelopeConsumer) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription": name,
		"message_id":   msg.ID,
		"event_type":   eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		// Malformed envelopes never become valid; ack to drop.
		s.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}

	var combined error
	for _, consumer := range consumers {
		combined = multierr.Append(combined, consumer.Process(ctx, eventType, envelope))
	}
	if combined != nil {
		s.logg.Error(logCtx, "event processing failed", combined)
		return false
	}
	return true
}
