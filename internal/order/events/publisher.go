package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order/dto"
	"github.com/yemba/grocery-core/internal/platform/broker"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"go.uber.org/zap"
)

// Publisher pushes order lifecycle events to the orders topic. Downstream
// collaborators (notifications, reporting) consume them; a publish failure is
// logged and dropped, never surfaced to the request that already committed.
type Publisher struct {
	producer *broker.KafkaProducer
	logger   logger.ZapLogger
}

func NewPublisher(producer *broker.KafkaProducer, log logger.ZapLogger) *Publisher {
	return &Publisher{producer: producer, logger: log}
}

func (p *Publisher) OrderCreated(ctx context.Context, o *model.Order) {
	p.publish(ctx, dto.OrderEvent{
		EventID:     uuid.New().String(),
		EventType:   dto.EventOrderCreated,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		UserID:      o.UserID,
		Total:       o.Total,
		Timestamp:   time.Now(),
	})
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, o *model.Order, from model.OrderStatus) {
	p.publish(ctx, dto.OrderEvent{
		EventID:     uuid.New().String(),
		EventType:   dto.EventOrderStatusChanged,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		PrevStatus:  string(from),
		UserID:      o.UserID,
		Total:       o.Total,
		Timestamp:   time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, evt dto.OrderEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}
	if err := p.producer.Publish(ctx, evt.OrderID, payload); err != nil {
		p.logger.Error("failed to publish order event",
			zap.String("order_id", evt.OrderID),
			zap.String("event_type", evt.EventType),
			zap.Error(err),
		)
	}
}
