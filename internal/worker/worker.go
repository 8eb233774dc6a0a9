package worker

import (
	"context"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/broker"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/cart"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/service"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reconciler is the order reconciliation contract shared with the front door
type Reconciler interface {
	Reconcile(ctx context.Context, conf *models.PaymentConfirmation, snapshot *cart.Snapshot) (*service.ReconciliationResult, error)
}

// WebhookWorker reconciles server-trusted payment confirmations from Kafka
type WebhookWorker struct {
	consumer   *broker.Consumer
	reconciler Reconciler
	notifier   service.Notifier
	logger     *zap.Logger
}

// NewWebhookWorker creates a new webhook worker; notifier may be nil
func NewWebhookWorker(consumer *broker.Consumer, reconciler Reconciler, notifier service.Notifier) *WebhookWorker {
	return &WebhookWorker{
		consumer:   consumer,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     util.GetLogger(),
	}
}

// Start starts the worker
func (w *WebhookWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting webhook worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *WebhookWorker) Stop() error {
	w.logger.Info("Stopping webhook worker")
	return w.consumer.Close()
}

// HandleMessage reconciles one confirmation. Malformed messages are dropped;
// a reconciliation failure is returned so the message is not committed.
func (w *WebhookWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := util.StartSpan(ctx, "WebhookWorker.HandleMessage")
	defer span.End()

	conf, err := broker.DecodeConfirmation(msg.Value)
	if err != nil {
		w.logger.Error("Dropping malformed confirmation",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		util.WebhookMessagesTotal.WithLabelValues("invalid").Inc()
		return nil
	}

	res, err := w.reconciler.Reconcile(ctx, conf, nil)
	if err != nil {
		util.WebhookMessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to reconcile %s: %w", conf.Key(), err)
	}

	if !res.Created {
		util.WebhookMessagesTotal.WithLabelValues("existing").Inc()
		w.logger.Info("Webhook confirmation already reconciled",
			zap.String("key", conf.Key().String()),
			zap.String("order_number", res.Order.OrderNumber))
		return nil
	}

	util.WebhookMessagesTotal.WithLabelValues("created").Inc()
	if w.notifier != nil {
		w.notifier.Dispatch(ctx, res.Order)
	}
	return nil
}
