package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/backend"
	"dagocoffee/counter/internal/checkout"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/ui"
)

func (t *Terminal) ChangeQuantity(index int, delta int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.router.Active() != ui.ViewOrder {
		return ErrNotAvailable
	}
	return t.catalog.ChangeQuantity(index, delta)
}

// SubmitOrder opens the payment choice, or toasts when the cart is empty.
func (t *Terminal) SubmitOrder() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.router.Active() != ui.ViewOrder {
		return ErrNotAvailable
	}
	if _, open := t.overlay.Active(); open {
		return ErrModalOpen
	}

	err := t.machine.Open(t.catalog.Total())
	if errors.Is(err, checkout.ErrEmptyCart) {
		t.toaster.Show(ToastEmptyCart)
		return nil
	}
	if err != nil {
		return err
	}
	return t.overlay.Open(ui.ModalPayment)
}

func (t *Terminal) ClosePayment() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.Dismiss(); err != nil {
		return err
	}
	t.overlay.Close(ui.ModalPayment)
	return nil
}

func (t *Terminal) ChooseCash() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.ChooseCash(); err != nil {
		return err
	}
	return t.overlay.Open(ui.ModalCash)
}

func (t *Terminal) ChooseQris() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.ChooseQris(); err != nil {
		return err
	}
	return t.overlay.Open(ui.ModalQris)
}

func (t *Terminal) QrisBack() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.BackFromQris(); err != nil {
		return err
	}
	return t.overlay.Open(ui.ModalPayment)
}

// CancelCash resets the cart without calling the backend.
func (t *Terminal) CancelCash() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.Cancel(); err != nil {
		return err
	}
	t.catalog.ResetAll()
	t.overlay.CloseAll()
	t.toaster.Show(ToastCancelled)
	return nil
}

func (t *Terminal) ConfirmCash(ctx context.Context) error {
	return t.confirm(ctx, domain.PaymentMethodCash)
}

// ConfirmQris runs the cash workflow with method QRIS. It is only wired when
// enabled in configuration.
func (t *Terminal) ConfirmQris(ctx context.Context) error {
	if !t.svc.QrisConfirmEnabled {
		return ErrQrisDisabled
	}
	return t.confirm(ctx, domain.PaymentMethodQris)
}

// confirm ignores the caller's cancellation and runs under its own deadline.
// Once createOrder is sent, the remaining steps and the journal write finish.
func (t *Terminal) confirm(parent context.Context, method string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), t.svc.CheckoutTimeout)
	defer cancel()

	t.mu.Lock()
	cart := t.catalog.Cart()
	if cart.Empty() {
		t.toaster.Show(ToastCartIsEmpty)
		t.mu.Unlock()
		return nil
	}
	if err := t.machine.Begin(method); err != nil {
		t.mu.Unlock()
		return err
	}
	t.overlay.CloseAll()
	t.toaster.Show(ToastProcessing)
	t.mu.Unlock()

	result, err := t.svc.Processor.Process(ctx, cart, method)

	t.mu.Lock()
	_ = t.machine.Finish()
	if err != nil {
		t.toaster.Show(ToastOrderFailed)
	} else {
		t.catalog.ResetAll()
		t.show(ui.ViewHome)
		t.toaster.Show(ToastOrderSent)
	}
	t.mu.Unlock()

	if err != nil {
		t.recordCheckoutFailure(ctx, cart, method, err)
		return nil
	}

	t.audit(ctx, domain.AuditLog{
		Action:     domain.AuditCheckoutCompleted,
		EntityType: domain.AuditEntityOrder,
		EntityID:   result.OrderID,
		Detail: fmt.Sprintf("method=%s amount=%d transaction_id=%s kitchen_ticket_id=%s",
			result.Method, result.Amount, result.TransactionID, result.KitchenTicketID),
	})
	if t.svc.Finance != nil {
		t.svc.Finance.InvalidateRevenue(ctx)
	}
	return nil
}

// recordCheckoutFailure journals how far the workflow got. Earlier steps are
// not compensated, so a failed order may already exist on the backend.
func (t *Terminal) recordCheckoutFailure(ctx context.Context, cart domain.Cart, method string, err error) {
	var stepErr *checkout.StepError
	step, orderID := "", ""
	if errors.As(err, &stepErr) {
		step, orderID = string(stepErr.Step), stepErr.OrderID
	}
	status := backend.StatusCode(err)
	t.log.WithError(err).WithFields(logrus.Fields{
		"step":           step,
		"order_id":       orderID,
		"backend_status": status,
	}).Error("checkout failed")

	t.audit(ctx, domain.AuditLog{
		Action:     domain.AuditCheckoutFailed,
		EntityType: domain.AuditEntityOrder,
		EntityID:   orderID,
		Detail:     fmt.Sprintf("step=%s status=%d method=%s amount=%d error=%v", step, status, method, cart.GrandTotal(), err),
	})
}
