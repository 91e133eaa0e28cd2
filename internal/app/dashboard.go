package app

import (
	"context"
	"errors"

	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/ui"
)

func isFinanceForm(m ui.Modal) bool {
	return m == ui.ModalProcurement || m == ui.ModalInvoice || m == ui.ModalPaySupplier
}

func (t *Terminal) RefreshFinance(ctx context.Context) error {
	if err := t.requireFinance(); err != nil {
		return err
	}
	t.loadFinance(ctx)
	return nil
}

func (t *Terminal) OpenFinanceForm(m ui.Modal) error {
	if !isFinanceForm(m) {
		return ErrNotFinanceForm
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.router.Active() != ui.ViewFinance {
		return ErrViewLocked
	}
	t.machine.Abandon()
	t.gate.Cancel()
	return t.overlay.Open(m)
}

func (t *Terminal) CloseFinanceForm(m ui.Modal) error {
	if !isFinanceForm(m) {
		return ErrNotFinanceForm
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.overlay.Close(m)
	return nil
}

// SubmitProcurement reloads the dashboard after a recorded procurement.
func (t *Terminal) SubmitProcurement(ctx context.Context, form finance.ProcurementForm) error {
	if err := t.requireFinance(); err != nil {
		return err
	}

	_, err := t.svc.Finance.RecordProcurement(ctx, t.id, form)
	if t.finishForm(ui.ModalProcurement, err, ToastProcurementRecorded, ToastProcurementFailed) {
		t.loadFinance(ctx)
	}
	return nil
}

func (t *Terminal) SubmitInvoice(ctx context.Context, form finance.InvoiceForm) error {
	if err := t.requireFinance(); err != nil {
		return err
	}

	_, err := t.svc.Finance.CreateInvoice(ctx, t.id, form)
	t.finishForm(ui.ModalInvoice, err, ToastInvoiceCreated, ToastInvoiceFailed)
	return nil
}

func (t *Terminal) SubmitPaySupplier(ctx context.Context, form finance.PaySupplierForm) error {
	if err := t.requireFinance(); err != nil {
		return err
	}

	_, err := t.svc.Finance.PaySupplier(ctx, t.id, form)
	t.finishForm(ui.ModalPaySupplier, err, ToastPaymentRecorded, ToastPaymentFailed)
	return nil
}

// finishForm toasts the outcome and closes the form on success. Failed
// submissions keep the form open for another try.
func (t *Terminal) finishForm(m ui.Modal, err error, success string, failure string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case errors.Is(err, finance.ErrInvalidInput):
		t.toaster.Show(ToastInvalidInput)
		return false
	case err != nil:
		t.toaster.Show(failure)
		return false
	}
	t.overlay.Close(m)
	t.toaster.Show(success)
	return true
}

func (t *Terminal) requireFinance() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.router.Active() != ui.ViewFinance {
		return ErrViewLocked
	}
	return nil
}

func (t *Terminal) loadFinance(ctx context.Context) {
	view := t.svc.Finance.Load(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.router.Active() == ui.ViewFinance {
		t.finance = &view
	}
}
