package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagocoffee/counter/internal/backend"
	"dagocoffee/counter/internal/backend/backendtest"
	"dagocoffee/counter/internal/checkout"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/store/memory"
	"dagocoffee/counter/internal/ui"
)

const testPassword = "12345"

type staticVerifier string

func (v staticVerifier) Verify(input string) bool {
	return input == string(v)
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC) }

type harness struct {
	term  *Terminal
	fake  *backendtest.Server
	audit *memory.Store
}

func newHarness(t *testing.T, mutate ...func(*Services)) harness {
	t.Helper()
	fake := backendtest.New()
	t.Cleanup(fake.Close)

	logger, _ := test.NewNullLogger()
	audit := memory.New(100)
	client := backend.NewClient(fake.URL, 2*time.Second, logger)
	svc := Services{
		Processor: checkout.NewProcessor(client, fixedNow, logger),
		Reports:   report.NewRenderer(client, fixedNow, logger),
		Finance:   finance.NewDashboard(client, nil, time.Minute, audit, fixedNow, logger),
		Audit:     audit,
		Verifier:  staticVerifier(testPassword),
		Limiter:   gate.NewAttemptLimiter(5, time.Minute, fixedNow),
		Now:       fixedNow,
		Logger:    logger,
	}
	for _, fn := range mutate {
		fn(&svc)
	}
	return harness{term: NewTerminal("term-1", svc), fake: fake, audit: audit}
}

// fillCart leaves 2x Latte and 1x Americano in the cart.
func fillCart(t *testing.T, term *Terminal) {
	t.Helper()
	require.NoError(t, term.ShowView(ui.ViewOrder))
	require.NoError(t, term.ChangeQuantity(0, 1))
	require.NoError(t, term.ChangeQuantity(0, 1))
	require.NoError(t, term.ChangeQuantity(2, 1))
}

func unlock(t *testing.T, term *Terminal, target gate.Target) {
	t.Helper()
	require.NoError(t, term.RequestAccess(target))
	require.NoError(t, term.SubmitPassword(context.Background(), "", testPassword))
}

func TestCashCheckoutRunsWorkflowInOrder(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)

	screen := h.term.Snapshot()
	assert.Equal(t, int64(70000), screen.TotalValue)
	assert.Equal(t, "IDR 70.000", screen.Total)

	require.NoError(t, h.term.SubmitOrder())
	assert.Equal(t, ui.ModalPayment, h.term.Snapshot().Modal)
	require.NoError(t, h.term.ChooseCash())
	assert.Equal(t, ui.ModalCash, h.term.Snapshot().Modal)

	require.NoError(t, h.term.ConfirmCash(context.Background()))

	assert.Equal(t, []string{backend.PathCreateOrder, backend.PathConfirmPayment, backend.PathSendToKitchen}, h.fake.Paths())

	var payment domain.PaymentConfirmation
	require.NoError(t, h.fake.CallsTo(backend.PathConfirmPayment)[0].Decode(&payment))
	assert.Equal(t, int64(70000), payment.Amount)
	assert.Equal(t, domain.PaymentMethodCash, payment.Method)

	screen = h.term.Snapshot()
	assert.Equal(t, ui.ViewHome, screen.View)
	assert.Empty(t, screen.Modal)
	assert.Equal(t, ToastOrderSent, screen.Toast)
	assert.Equal(t, int64(0), screen.TotalValue)
	for _, card := range screen.Cards {
		assert.Zero(t, card.Qty, card.SKU)
	}
	assert.Equal(t, checkout.PhaseIdle.String(), screen.Checkout)

	logs, err := h.audit.ListAuditLogs(context.Background(), "term-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditCheckoutCompleted, logs[0].Action)
	assert.Equal(t, payment.OrderID, logs[0].EntityID)
}

func TestCheckoutOutlivesCancelledRequest(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.term.ConfirmCash(ctx))

	assert.Equal(t, []string{backend.PathCreateOrder, backend.PathConfirmPayment, backend.PathSendToKitchen}, h.fake.Paths())
	assert.Equal(t, ToastOrderSent, h.term.Snapshot().Toast)

	logs, err := h.audit.ListAuditLogs(context.Background(), "term-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditCheckoutCompleted, logs[0].Action)
}

func TestCheckoutHasItsOwnDeadline(t *testing.T) {
	h := newHarness(t, func(svc *Services) {
		svc.CheckoutTimeout = 50 * time.Millisecond
	})
	h.fake.Delay(backend.PathConfirmPayment, 300*time.Millisecond)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())

	require.NoError(t, h.term.ConfirmCash(context.Background()))

	screen := h.term.Snapshot()
	assert.Equal(t, ToastOrderFailed, screen.Toast)
	assert.Equal(t, int64(70000), screen.TotalValue)
	assert.Empty(t, h.fake.CallsTo(backend.PathSendToKitchen))

	logs, err := h.audit.ListAuditLogs(context.Background(), "term-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditCheckoutFailed, logs[0].Action)
	assert.Contains(t, logs[0].Detail, "step=confirm_payment")
	assert.Contains(t, logs[0].Detail, "status=0")
}

func TestSubmitWithEmptyCartDoesNotOpenPayment(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.term.ShowView(ui.ViewOrder))

	require.NoError(t, h.term.SubmitOrder())

	screen := h.term.Snapshot()
	assert.Empty(t, screen.Modal)
	assert.Equal(t, ToastEmptyCart, screen.Toast)
	assert.Equal(t, checkout.PhaseIdle.String(), screen.Checkout)
	assert.Empty(t, h.fake.Calls())
}

func TestConfirmPaymentFailureSkipsKitchen(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail(backend.PathConfirmPayment, http.StatusInternalServerError)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())

	require.NoError(t, h.term.ConfirmCash(context.Background()))

	assert.Equal(t, []string{backend.PathCreateOrder, backend.PathConfirmPayment}, h.fake.Paths())
	screen := h.term.Snapshot()
	assert.Equal(t, ToastOrderFailed, screen.Toast)
	assert.Equal(t, int64(70000), screen.TotalValue)
	assert.Equal(t, ui.ViewOrder, screen.View)
	assert.Empty(t, screen.Modal)

	logs, err := h.audit.ListAuditLogs(context.Background(), "term-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditCheckoutFailed, logs[0].Action)
	assert.True(t, strings.HasPrefix(logs[0].EntityID, "ORD-"))
	assert.Contains(t, logs[0].Detail, "step=confirm_payment")
	assert.Contains(t, logs[0].Detail, "status=500")
}

func TestCancelCashResetsCartWithoutBackendCall(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())

	require.NoError(t, h.term.CancelCash())

	screen := h.term.Snapshot()
	assert.Equal(t, ToastCancelled, screen.Toast)
	assert.Equal(t, int64(0), screen.TotalValue)
	assert.Empty(t, screen.Modal)
	assert.Empty(t, h.fake.Calls())
}

func TestClosePaymentKeepsCart(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())

	require.NoError(t, h.term.ClosePayment())

	screen := h.term.Snapshot()
	assert.Empty(t, screen.Modal)
	assert.Equal(t, int64(70000), screen.TotalValue)
	assert.ErrorIs(t, h.term.ChooseCash(), checkout.ErrInvalidTransition)
}

func TestQrisPathBackAndConfirmFlag(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseQris())
	assert.Equal(t, ui.ModalQris, h.term.Snapshot().Modal)

	assert.ErrorIs(t, h.term.ConfirmQris(context.Background()), ErrQrisDisabled)

	require.NoError(t, h.term.QrisBack())
	assert.Equal(t, ui.ModalPayment, h.term.Snapshot().Modal)
	assert.Empty(t, h.fake.Calls())
}

func TestQrisConfirmWhenEnabled(t *testing.T) {
	h := newHarness(t, func(s *Services) { s.QrisConfirmEnabled = true })
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseQris())

	require.NoError(t, h.term.ConfirmQris(context.Background()))

	require.Len(t, h.fake.CallsTo(backend.PathSendToKitchen), 1)
	var event domain.FulfillmentEvent
	require.NoError(t, h.fake.CallsTo(backend.PathSendToKitchen)[0].Decode(&event))
	assert.Equal(t, domain.PaymentMethodQris, event.Payment.Method)
	assert.Equal(t, ui.ViewHome, h.term.Snapshot().View)
}

func TestSecondConfirmWhileSubmittingIsRejected(t *testing.T) {
	h := newHarness(t)
	h.fake.Delay(backend.PathCreateOrder, 300*time.Millisecond)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = h.term.ConfirmCash(context.Background())
	}()

	require.Eventually(t, func() bool {
		return h.term.Snapshot().Checkout == checkout.PhaseSubmitting.String()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ToastProcessing, h.term.Snapshot().Toast)
	assert.ErrorIs(t, h.term.ConfirmCash(context.Background()), checkout.ErrInvalidTransition)

	wg.Wait()
	assert.Len(t, h.fake.CallsTo(backend.PathCreateOrder), 1)
	assert.Equal(t, ToastOrderSent, h.term.Snapshot().Toast)
}

func TestDirectNavigationCannotReachGatedViews(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.term.ShowView(ui.ViewReport), ErrViewLocked)
	assert.ErrorIs(t, h.term.ShowView(ui.ViewFinance), ErrViewLocked)
	assert.ErrorIs(t, h.term.ShowView(ui.View("admin")), ui.ErrUnknownView)
	assert.Equal(t, ui.ViewHome, h.term.Snapshot().View)

	require.NoError(t, h.term.ShowView(ui.ViewOrder))
	screen := h.term.Snapshot()
	active := 0
	for _, v := range screen.Views {
		if v.Active {
			active++
			assert.Equal(t, ui.ViewOrder, v.Name)
		}
	}
	assert.Equal(t, 1, active)
}

func TestWrongPasswordShowsInlineErrorOnly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.term.RequestAccess(gate.TargetReport))

	require.NoError(t, h.term.SubmitPassword(context.Background(), "", "nope"))

	screen := h.term.Snapshot()
	assert.Equal(t, ui.ViewHome, screen.View)
	assert.Equal(t, ui.ModalPassword, screen.Modal)
	assert.Equal(t, gate.MessageIncorrect, screen.GateError)
	assert.Empty(t, screen.Toast)
	assert.Empty(t, h.fake.Calls())

	logs, err := h.audit.ListAuditLogs(context.Background(), "term-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditGateDenied, logs[0].Action)
	assert.Equal(t, string(gate.TargetReport), logs[0].EntityID)
}

func TestGateTargetDoesNotLeakBetweenAttempts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.term.RequestAccess(gate.TargetReport))
	h.term.CancelAccess()
	assert.Empty(t, h.term.Snapshot().Modal)

	unlock(t, h.term, gate.TargetFinance)

	screen := h.term.Snapshot()
	assert.Equal(t, ui.ViewFinance, screen.View)
	require.NotNil(t, screen.Finance)
	assert.Nil(t, screen.Report)
	assert.Empty(t, screen.Modal)
	assert.Len(t, h.fake.CallsTo(backend.PathGetSalesReport), 1)
	assert.Empty(t, h.fake.CallsTo(backend.PathReportSales))
}

func TestSubmitPasswordWithoutRequest(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.term.SubmitPassword(context.Background(), "", testPassword), gate.ErrNoPendingRequest)
}

func TestRepeatedFailuresLockTheGate(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.term.RequestAccess(gate.TargetReport))
	for range 5 {
		require.NoError(t, h.term.SubmitPassword(context.Background(), "", "wrong"))
	}

	require.NoError(t, h.term.SubmitPassword(context.Background(), "", testPassword))

	screen := h.term.Snapshot()
	assert.Equal(t, ui.ViewHome, screen.View)
	assert.Equal(t, gate.MessageTooManyAttempts, screen.GateError)
}

func TestReportUnlockLoadsAndRefreshFilters(t *testing.T) {
	h := newHarness(t)
	h.fake.SeedRows(
		domain.ReportRow{OrderID: "ORD-1", Amount: 70000, Method: domain.PaymentMethodCash, Items: []domain.ReportItem{{SKU: "LATTE", Name: "Latte", Qty: 2}}},
		domain.ReportRow{OrderID: "ORD-2", Amount: 15000, Method: domain.PaymentMethodQris},
	)

	unlock(t, h.term, gate.TargetReport)

	screen := h.term.Snapshot()
	assert.Equal(t, ui.ViewReport, screen.View)
	require.NotNil(t, screen.Report)
	assert.Equal(t, "Orders: 2  •  Revenue: IDR 85.000  •  Paid Orders: 2", screen.Report.Summary)
	assert.Equal(t, "2x Latte", screen.Report.Rows[0].Items)

	require.NoError(t, h.term.RefreshReport(context.Background(), domain.ReportQuery{PaymentMethod: domain.PaymentMethodQris}))
	view, err := h.term.ReportView()
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "ORD-2", view.Rows[0].OrderID)
	assert.Equal(t, domain.PaymentMethodQris, view.Query.PaymentMethod)

	require.NoError(t, h.term.ShowView(ui.ViewHome))
	assert.Nil(t, h.term.Snapshot().Report)
	_, err = h.term.ReportView()
	assert.ErrorIs(t, err, ErrViewLocked)
	assert.ErrorIs(t, h.term.RefreshReport(context.Background(), domain.ReportQuery{}), ErrViewLocked)
}

func TestReportFailureIsShownInView(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail(backend.PathReportSales, http.StatusServiceUnavailable)

	unlock(t, h.term, gate.TargetReport)

	screen := h.term.Snapshot()
	assert.Equal(t, ui.ViewReport, screen.View)
	require.NotNil(t, screen.Report)
	assert.Equal(t, report.MessageLoadFailed, screen.Report.Error)
}

func TestProcurementValidationAndReload(t *testing.T) {
	h := newHarness(t)
	unlock(t, h.term, gate.TargetFinance)
	require.NoError(t, h.term.OpenFinanceForm(ui.ModalProcurement))

	require.NoError(t, h.term.SubmitProcurement(context.Background(), finance.ProcurementForm{SupplierID: "SUP-1", Cost: 0}))
	screen := h.term.Snapshot()
	assert.Equal(t, ToastInvalidInput, screen.Toast)
	assert.Equal(t, ui.ModalProcurement, screen.Modal)
	assert.Empty(t, h.fake.CallsTo(backend.PathRecordProcurement))

	require.NoError(t, h.term.SubmitProcurement(context.Background(), finance.ProcurementForm{SupplierID: "SUP-1", Cost: 15000}))
	calls := h.fake.CallsTo(backend.PathRecordProcurement)
	require.Len(t, calls, 1)
	var sent domain.Procurement
	require.NoError(t, calls[0].Decode(&sent))
	assert.Equal(t, int64(15000), sent.TotalCost)

	screen = h.term.Snapshot()
	assert.Equal(t, ToastProcurementRecorded, screen.Toast)
	assert.Empty(t, screen.Modal)
	assert.Len(t, h.fake.CallsTo(backend.PathGetRawMaterialLog), 2)
	require.NotNil(t, screen.Finance)
	require.NotEmpty(t, screen.Finance.Activity)
	assert.Equal(t, domain.AuditProcurementRecorded, screen.Finance.Activity[0].Action)
}

func TestInvoiceFailureKeepsFormOpen(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail(backend.PathCreatePaymentInvoice, http.StatusInternalServerError)
	unlock(t, h.term, gate.TargetFinance)
	require.NoError(t, h.term.OpenFinanceForm(ui.ModalInvoice))

	require.NoError(t, h.term.SubmitInvoice(context.Background(), finance.InvoiceForm{SupplierID: "SUP-1", Amount: 5000}))

	screen := h.term.Snapshot()
	assert.Equal(t, ToastInvoiceFailed, screen.Toast)
	assert.Equal(t, ui.ModalInvoice, screen.Modal)
}

func TestPaySupplierSuccessClosesForm(t *testing.T) {
	h := newHarness(t)
	unlock(t, h.term, gate.TargetFinance)
	require.NoError(t, h.term.OpenFinanceForm(ui.ModalPaySupplier))

	require.NoError(t, h.term.SubmitPaySupplier(context.Background(), finance.PaySupplierForm{SupplierID: "SUP-1", Amount: 5000}))

	screen := h.term.Snapshot()
	assert.Equal(t, ToastPaymentRecorded, screen.Toast)
	assert.Empty(t, screen.Modal)
	assert.Len(t, h.fake.CallsTo(backend.PathPaySupplier), 1)
}

func TestFinanceActionsRequireFinanceView(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.term.OpenFinanceForm(ui.ModalInvoice), ErrViewLocked)
	assert.ErrorIs(t, h.term.SubmitInvoice(context.Background(), finance.InvoiceForm{SupplierID: "SUP-1", Amount: 1}), ErrViewLocked)
	assert.ErrorIs(t, h.term.RefreshFinance(context.Background()), ErrViewLocked)
	assert.ErrorIs(t, h.term.OpenFinanceForm(ui.ModalCash), ErrNotFinanceForm)
	assert.Empty(t, h.fake.Calls())
}

func TestCompletedCheckoutRefreshesFinanceRevenue(t *testing.T) {
	h := newHarness(t)
	fillCart(t, h.term)
	require.NoError(t, h.term.SubmitOrder())
	require.NoError(t, h.term.ChooseCash())
	require.NoError(t, h.term.ConfirmCash(context.Background()))

	unlock(t, h.term, gate.TargetFinance)

	screen := h.term.Snapshot()
	require.NotNil(t, screen.Finance)
	assert.Equal(t, "IDR 70.000", screen.Finance.Revenue)
}

func TestQuantityChangesOnlyInOrderView(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.term.ChangeQuantity(0, 1), ErrNotAvailable)
	require.NoError(t, h.term.ShowView(ui.ViewOrder))
	require.NoError(t, h.term.ChangeQuantity(0, -1))
	assert.Zero(t, h.term.Snapshot().Cards[0].Qty)
}
