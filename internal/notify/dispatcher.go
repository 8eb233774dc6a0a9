// Package notify sends order emails. Each recipient is attempted independently
// and a delivery failure never changes the order.
package notify

import (
	"context"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"go.uber.org/zap"
)

// Job statuses
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// JobResult is the final state of one notification job
type JobResult struct {
	Job    models.NotificationJob
	Status string
	Err    error
}

// DispatchResult holds the independent customer and business outcomes
type DispatchResult struct {
	Customer JobResult
	Business JobResult
}

// Dispatcher sends customer confirmations and business alerts
type Dispatcher struct {
	mailer          Mailer
	renderer        *Renderer
	exec            *retry.Executor
	businessAddress string
	logger          *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(mailer Mailer, renderer *Renderer, exec *retry.Executor, businessAddress string) *Dispatcher {
	return &Dispatcher{
		mailer:          mailer,
		renderer:        renderer,
		exec:            exec,
		businessAddress: businessAddress,
		logger:          util.GetLogger(),
	}
}

// Dispatch attempts both notifications for order
func (d *Dispatcher) Dispatch(ctx context.Context, order *models.Order) DispatchResult {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Dispatch")
	defer span.End()

	return DispatchResult{
		Customer: d.send(ctx, order, models.RecipientCustomer, order.CustomerEmail),
		Business: d.send(ctx, order, models.RecipientBusiness, d.businessAddress),
	}
}

func (d *Dispatcher) send(ctx context.Context, order *models.Order, role models.RecipientRole, recipient string) (res JobResult) {
	job := models.NotificationJob{
		OrderID:       order.ID,
		RecipientRole: role,
		Recipient:     recipient,
		Template:      TemplateFor(role, order.Status),
	}

	defer func() {
		if r := recover(); r != nil {
			res = d.finish(order, job, fmt.Errorf("notification panicked: %v", r))
		}
	}()

	if recipient == "" {
		d.logger.Info("No recipient for notification, skipping",
			zap.String("order_number", order.OrderNumber),
			zap.String("role", string(role)))
		util.NotificationsTotal.WithLabelValues(string(role), StatusSkipped).Inc()
		return JobResult{Job: job, Status: StatusSkipped}
	}

	subject, body, err := d.renderer.Render(job.Template, order)
	if err != nil {
		return d.finish(order, job, err)
	}

	msg := Message{To: recipient, Subject: subject, HTML: body}
	err = retry.Run(ctx, d.exec, "notify."+string(role), ClassifySMTP, func(ctx context.Context) error {
		job.Attempt++
		if err := d.mailer.Send(ctx, msg); err != nil {
			job.LastError = err.Error()
			return err
		}
		return nil
	})
	return d.finish(order, job, err)
}

func (d *Dispatcher) finish(order *models.Order, job models.NotificationJob, err error) JobResult {
	role := string(job.RecipientRole)
	if err != nil {
		if job.LastError == "" {
			job.LastError = err.Error()
		}
		d.logger.Error("Notification failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("role", role),
			zap.String("template", job.Template),
			zap.Int("attempts", job.Attempt),
			zap.Error(err))
		util.NotificationsTotal.WithLabelValues(role, StatusFailed).Inc()
		return JobResult{Job: job, Status: StatusFailed, Err: err}
	}

	d.logger.Info("Notification sent",
		zap.String("order_number", order.OrderNumber),
		zap.String("role", role),
		zap.String("template", job.Template),
		zap.Int("attempts", job.Attempt))
	util.NotificationsTotal.WithLabelValues(role, StatusSent).Inc()
	return JobResult{Job: job, Status: StatusSent}
}
