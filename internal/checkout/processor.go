package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/xid"
)

type Backend interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	ConfirmPayment(ctx context.Context, req domain.PaymentConfirmation) (domain.ConfirmPaymentResponse, error)
	SendToKitchen(ctx context.Context, event domain.FulfillmentEvent) (domain.KitchenResponse, error)
}

type Step string

const (
	StepCreateOrder    Step = "create_order"
	StepConfirmPayment Step = "confirm_payment"
	StepSendToKitchen  Step = "send_to_kitchen"
)

var errMissingOrderID = errors.New("backend returned no order id")

// StepError reports which call failed. Steps before it stay applied on the
// backend; OrderID is set once createOrder has succeeded.
type StepError struct {
	Step    Step
	OrderID string
	Err     error
}

func (e *StepError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s failed for order %s: %v", e.Step, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Result struct {
	OrderID         string
	TransactionID   string
	KitchenTicketID string
	Amount          int64
	Method          string
}

type Processor struct {
	backend Backend
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewProcessor(backend Backend, now func() time.Time, logger logrus.FieldLogger) *Processor {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Processor{backend: backend, now: now, log: logger.WithField("module", "checkout")}
}

// Process runs createOrder, confirmPayment and sendToKitchen in order, each
// only after the previous one succeeded.
func (p *Processor) Process(ctx context.Context, cart domain.Cart, method string) (Result, error) {
	if cart.Empty() {
		return Result{}, ErrEmptyCart
	}

	created, err := p.backend.CreateOrder(ctx, domain.CreateOrderRequest{
		OrderID:     nil,
		CartID:      domain.CartIDWeb,
		ProductList: cart.Lines,
		TotalPrice:  domain.TotalPrice{Subtotal: cart.Subtotal, GrandTotal: cart.GrandTotal()},
		Currency:    domain.CurrencyIDR,
		Channel:     domain.ChannelWeb,
	})
	if err == nil && created.OrderID == "" {
		err = errMissingOrderID
	}
	if err != nil {
		return Result{}, &StepError{Step: StepCreateOrder, Err: err}
	}

	result := Result{
		OrderID:       created.OrderID,
		TransactionID: xid.Timed("TXN", p.now()),
		Amount:        cart.GrandTotal(),
		Method:        method,
	}
	logger := p.log.WithField("order_id", result.OrderID)

	if _, err := p.backend.ConfirmPayment(ctx, domain.PaymentConfirmation{
		OrderID:       result.OrderID,
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Method:        method,
		Status:        domain.PaymentCaptured,
		PaidAt:        p.timestamp(),
	}); err != nil {
		logger.WithError(err).Warn("order created but payment not confirmed")
		return result, &StepError{Step: StepConfirmPayment, OrderID: result.OrderID, Err: err}
	}

	items := make([]domain.FulfillmentItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, domain.FulfillmentItem{SKU: line.SKU, Qty: line.Qty})
	}
	ticket, err := p.backend.SendToKitchen(ctx, domain.FulfillmentEvent{
		OrderID: result.OrderID,
		CartID:  domain.CartIDWeb,
		Payment: domain.FulfillmentPayment{
			Status:        domain.PaymentCaptured,
			Method:        method,
			TransactionID: result.TransactionID,
		},
		Items:          items,
		EventType:      domain.EventFulfillment,
		FulfilledAt:    p.timestamp(),
		IdempotencyKey: IdempotencyKey(result.OrderID),
	})
	if err != nil {
		logger.WithError(err).Warn("payment captured but kitchen not notified")
		return result, &StepError{Step: StepSendToKitchen, OrderID: result.OrderID, Err: err}
	}

	result.KitchenTicketID = ticket.KitchenTicketID
	logger.WithField("kitchen_ticket_id", ticket.KitchenTicketID).Info("order sent to kitchen")
	return result, nil
}

func IdempotencyKey(orderID string) string {
	return orderID + "-F1"
}

func (p *Processor) timestamp() string {
	return p.now().UTC().Format(time.RFC3339Nano)
}
