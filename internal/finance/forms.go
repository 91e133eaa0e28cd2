package finance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/backend"
	"dagocoffee/counter/internal/cache"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/store"
	"dagocoffee/counter/internal/xid"
)

const (
	GeneralStockSKU    = "GENERAL-STOCK"
	GeneralInvoiceText = "General Invoice"
)

var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New()

type ProcurementForm struct {
	SupplierID string `json:"supplierId" validate:"required"`
	Cost       int64  `json:"cost" validate:"gt=0"`
}

type InvoiceForm struct {
	SupplierID string `json:"supplierId" validate:"required"`
	Amount     int64  `json:"amount" validate:"gt=0"`
	DueDate    string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

type PaySupplierForm struct {
	SupplierID    string `json:"supplierId" validate:"required"`
	ProcurementID string `json:"procurementId"`
	Amount        int64  `json:"amount" validate:"gt=0"`
}

// ParseAmount mirrors a numeric form field: anything unparsable counts as 0.
func ParseAmount(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+":"+fe.Tag())
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ","))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// RecordProcurement posts a single general-stock line costing form.Cost.
// The material log cache is dropped on success.
func (d *Dashboard) RecordProcurement(ctx context.Context, terminalID string, form ProcurementForm) (domain.Procurement, error) {
	form.SupplierID = strings.TrimSpace(form.SupplierID)
	if err := validateForm(form); err != nil {
		return domain.Procurement{}, err
	}

	now := d.now()
	procurement := domain.Procurement{
		ProcurementID: xid.Timed("PROC", now),
		SupplierID:    form.SupplierID,
		Items:         []domain.ProcurementItem{{SKU: GeneralStockSKU, Qty: 1, Cost: form.Cost}},
		TotalCost:     form.Cost,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
	}
	if err := d.backend.RecordProcurement(ctx, procurement); err != nil {
		d.recordFailure(ctx, terminalID, "record_procurement", form.SupplierID, err)
		return procurement, fmt.Errorf("record procurement: %w", err)
	}

	d.invalidate(ctx, cache.KeyFinanceMaterials)
	d.record(ctx, terminalID, domain.AuditProcurementRecorded, form.SupplierID,
		fmt.Sprintf("procurement_id=%s total_cost=%d", procurement.ProcurementID, procurement.TotalCost))
	return procurement, nil
}

func (d *Dashboard) CreateInvoice(ctx context.Context, terminalID string, form InvoiceForm) (domain.PaymentInvoice, error) {
	form.SupplierID = strings.TrimSpace(form.SupplierID)
	form.DueDate = strings.TrimSpace(form.DueDate)
	if err := validateForm(form); err != nil {
		return domain.PaymentInvoice{}, err
	}

	invoice := domain.PaymentInvoice{
		SupplierID:  form.SupplierID,
		Details:     []domain.InvoiceDetail{{Description: GeneralInvoiceText, Amount: form.Amount}},
		TotalAmount: form.Amount,
		DueDate:     form.DueDate,
	}
	if err := d.backend.CreatePaymentInvoice(ctx, invoice); err != nil {
		d.recordFailure(ctx, terminalID, "create_invoice", form.SupplierID, err)
		return invoice, fmt.Errorf("create invoice: %w", err)
	}

	d.record(ctx, terminalID, domain.AuditInvoiceCreated, form.SupplierID,
		fmt.Sprintf("total_amount=%d due_date=%s", invoice.TotalAmount, invoice.DueDate))
	return invoice, nil
}

func (d *Dashboard) PaySupplier(ctx context.Context, terminalID string, form PaySupplierForm) (domain.SupplierPayment, error) {
	form.SupplierID = strings.TrimSpace(form.SupplierID)
	form.ProcurementID = strings.TrimSpace(form.ProcurementID)
	if err := validateForm(form); err != nil {
		return domain.SupplierPayment{}, err
	}

	payment := domain.SupplierPayment{
		SupplierID:    form.SupplierID,
		ProcurementID: form.ProcurementID,
		Amount:        form.Amount,
		Reference:     xid.Timed("BANK", d.now()),
	}
	if err := d.backend.PaySupplier(ctx, payment); err != nil {
		d.recordFailure(ctx, terminalID, "pay_supplier", form.SupplierID, err)
		return payment, fmt.Errorf("pay supplier: %w", err)
	}

	d.record(ctx, terminalID, domain.AuditSupplierPaid, form.SupplierID,
		fmt.Sprintf("amount=%d reference=%s procurement_id=%s", payment.Amount, payment.Reference, payment.ProcurementID))
	return payment, nil
}

func (d *Dashboard) record(ctx context.Context, terminalID string, action string, supplierID string, detail string) {
	store.LogAudit(ctx, d.audit, d.log, domain.AuditLog{
		TerminalID: terminalID,
		Action:     action,
		EntityType: domain.AuditEntitySupplier,
		EntityID:   supplierID,
		Detail:     detail,
		CreatedAt:  d.now().UTC(),
	})
}

func (d *Dashboard) recordFailure(ctx context.Context, terminalID string, operation string, supplierID string, err error) {
	status := backend.StatusCode(err)
	d.log.WithError(err).WithFields(logrus.Fields{
		"terminal_id":    terminalID,
		"operation":      operation,
		"backend_status": status,
	}).Warn("finance submission failed")
	d.record(ctx, terminalID, domain.AuditFinanceActionFailed, supplierID,
		fmt.Sprintf("operation=%s status=%d error=%v", operation, status, err))
}
