package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order"
	"github.com/yemba/grocery-core/internal/platform/broker"
	"github.com/yemba/grocery-core/internal/platform/cache"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"go.uber.org/zap"
)

const eventDedupTTL = 24 * time.Hour

// CourierListener consumes delivery events from the courier app and drives
// them through the same transition function interactive callers use.
type CourierListener struct {
	consumer *broker.KafkaConsumer
	uc       order.UseCase
	cache    *cache.RedisClient
	logger   logger.ZapLogger
}

func NewCourierListener(consumer *broker.KafkaConsumer, uc order.UseCase, cache *cache.RedisClient, log logger.ZapLogger) *CourierListener {
	return &CourierListener{
		consumer: consumer,
		uc:       uc,
		cache:    cache,
		logger:   log,
	}
}

func (l *CourierListener) Start(ctx context.Context) {
	l.logger.Info("starting courier event listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping courier event listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to read courier message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type CourierEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	CourierID string    `json:"courier_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (l *CourierListener) processMessage(ctx context.Context, value []byte) {
	var event CourierEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal courier event", zap.Error(err))
		return
	}

	var target model.OrderStatus
	switch event.EventType {
	case "CourierPickedUp":
		target = model.OrderOutForDelivery
	case "CourierDelivered":
		target = model.OrderDelivered
	default:
		return
	}

	// The broker redelivers on rebalance; drop events already handled.
	if l.cache != nil && event.EventID != "" {
		fresh, err := l.cache.SetIdempotency(ctx, "courier-event:"+event.EventID, eventDedupTTL)
		if err != nil {
			l.logger.Warn("courier event dedup check failed", zap.Error(err))
		} else if !fresh {
			return
		}
	}

	actor := auth.Actor{UserID: event.CourierID, Role: auth.RoleCourier}
	if _, err := l.uc.Transition(ctx, event.OrderID, target, actor); err != nil {
		// Redelivery of an applied event lands here as an invalid transition.
		if errors.Is(err, order.ErrInvalidTransition) {
			l.logger.Debug("courier event ignored",
				zap.String("order_id", event.OrderID),
				zap.String("target", string(target)),
			)
			return
		}
		l.logger.Error("courier event transition failed",
			zap.String("order_id", event.OrderID),
			zap.String("target", string(target)),
			zap.Error(err),
		)
	}
}
