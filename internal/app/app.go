// Package app holds the explicit state of one counter terminal and the
// actions a cashier can take on it.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/catalog"
	"dagocoffee/counter/internal/checkout"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/store"
	"dagocoffee/counter/internal/ui"
)

const (
	ToastEmptyCart           = "Empty Cart"
	ToastCartIsEmpty         = "Cart is empty"
	ToastProcessing          = "Processing..."
	ToastOrderSent           = "Order Sent to Kitchen!"
	ToastOrderFailed         = "Error completing order"
	ToastCancelled           = "Cancelled"
	ToastInvalidInput        = "Invalid Input"
	ToastProcurementRecorded = "Procurement Recorded!"
	ToastProcurementFailed   = "Error recording"
	ToastInvoiceCreated      = "Invoice Created!"
	ToastInvoiceFailed       = "Error creating invoice"
	ToastPaymentRecorded     = "Payment Recorded!"
	ToastPaymentFailed       = "Payment Failed"
)

var (
	ErrViewLocked     = errors.New("view requires the access password")
	ErrNotAvailable   = errors.New("action not available in the current view")
	ErrModalOpen      = errors.New("a dialog is open")
	ErrQrisDisabled   = errors.New("qris confirmation is disabled")
	ErrNotFinanceForm = errors.New("not a finance form")
)

// Services are shared by every terminal.
type Services struct {
	Processor          *checkout.Processor
	Reports            *report.Renderer
	Finance            *finance.Dashboard
	Audit              store.Repository
	Verifier           gate.Verifier
	Limiter            *gate.AttemptLimiter
	Drinks             []domain.CatalogItem
	QrisConfirmEnabled bool
	CheckoutTimeout    time.Duration
	Now                func() time.Time
	Logger             logrus.FieldLogger
}

const defaultCheckoutTimeout = 30 * time.Second

// Terminal is a single-writer state cell. Every action takes the lock to
// read or mutate state and releases it around backend calls.
type Terminal struct {
	id  string
	svc Services
	log logrus.FieldLogger

	mu          sync.Mutex
	catalog     *catalog.Store
	router      *ui.Router
	overlay     ui.Overlay
	toaster     *ui.Toaster
	machine     checkout.Machine
	gate        *gate.Gate
	reportQuery domain.ReportQuery
	report      *report.View
	finance     *finance.View
}

func NewTerminal(id string, svc Services) *Terminal {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.Logger == nil {
		svc.Logger = logrus.StandardLogger()
	}
	if svc.CheckoutTimeout <= 0 {
		svc.CheckoutTimeout = defaultCheckoutTimeout
	}
	drinks := svc.Drinks
	if len(drinks) == 0 {
		drinks = catalog.DefaultDrinks()
	}
	return &Terminal{
		id:      id,
		svc:     svc,
		log:     svc.Logger.WithFields(logrus.Fields{"module": "terminal", "terminal_id": id}),
		catalog: catalog.New(drinks),
		router:  ui.NewRouter(),
		toaster: ui.NewToaster(svc.Now),
		gate:    gate.New(id, svc.Verifier, svc.Limiter),
	}
}

func (t *Terminal) ID() string {
	return t.id
}

// ShowView navigates directly. The report and finance views are only reached
// through the access gate.
func (t *Terminal) ShowView(name ui.View) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := ui.ParseView(string(name)); err != nil {
		return err
	}
	if name == ui.ViewReport || name == ui.ViewFinance {
		return ErrViewLocked
	}
	if _, open := t.overlay.Active(); open {
		return ErrModalOpen
	}
	t.show(name)
	return nil
}

// show must be called with the lock held. Leaving a gated view drops its data.
func (t *Terminal) show(name ui.View) {
	if name != ui.ViewReport {
		t.report = nil
	}
	if name != ui.ViewFinance {
		t.finance = nil
	}
	_ = t.router.Show(name)
}

func (t *Terminal) audit(ctx context.Context, entry domain.AuditLog) {
	entry.TerminalID = t.id
	entry.CreatedAt = t.svc.Now().UTC()
	store.LogAudit(ctx, t.svc.Audit, t.log, entry)
}
