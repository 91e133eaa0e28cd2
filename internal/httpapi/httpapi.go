package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/app"
	"dagocoffee/counter/internal/catalog"
	"dagocoffee/counter/internal/checkout"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/ui"
)

const csrfField = "csrf_token"

var errBadRequest = errors.New("bad request")

type API struct {
	sessions   *SessionManager
	assetsDir  string
	csrfSecret []byte
	log        logrus.FieldLogger
}

func New(sessions *SessionManager, assetsDir string, logger logrus.FieldLogger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		sessions:   sessions,
		assetsDir:  assetsDir,
		csrfSecret: csrfSecret,
		log:        logger.WithField("module", "httpapi"),
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

// clientKey is the caller's address without the port. Gate failures are
// counted against it so a new session does not earn new guesses.
func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", a.handlePage)
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/report/export.xlsx", a.handleExport(exportXLSX))
	mux.HandleFunc("/report/export.csv", a.handleExport(exportCSV))
	if a.assetsDir != "" {
		mux.Handle("/ui/", http.StripPrefix("/ui/", http.FileServer(http.Dir(a.assetsDir))))
	}

	mux.HandleFunc("/actions/view", a.action(a.actView))
	mux.HandleFunc("/actions/quantity", a.action(a.actQuantity))
	mux.HandleFunc("/actions/order/submit", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.SubmitOrder()
	}))
	mux.HandleFunc("/actions/payment/close", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.ClosePayment()
	}))
	mux.HandleFunc("/actions/payment/cash", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.ChooseCash()
	}))
	mux.HandleFunc("/actions/payment/qris", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.ChooseQris()
	}))
	mux.HandleFunc("/actions/cash/paid", a.action(func(ctx context.Context, t *app.Terminal, _ *http.Request) error {
		return t.ConfirmCash(ctx)
	}))
	mux.HandleFunc("/actions/cash/cancel", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.CancelCash()
	}))
	mux.HandleFunc("/actions/qris/back", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		return t.QrisBack()
	}))
	mux.HandleFunc("/actions/qris/confirm", a.action(func(ctx context.Context, t *app.Terminal, _ *http.Request) error {
		return t.ConfirmQris(ctx)
	}))
	mux.HandleFunc("/actions/gate/open", a.action(a.actGateOpen))
	mux.HandleFunc("/actions/gate/submit", a.action(func(ctx context.Context, t *app.Terminal, r *http.Request) error {
		return t.SubmitPassword(ctx, clientKey(r), r.PostFormValue("password"))
	}))
	mux.HandleFunc("/actions/gate/cancel", a.action(func(_ context.Context, t *app.Terminal, _ *http.Request) error {
		t.CancelAccess()
		return nil
	}))
	mux.HandleFunc("/actions/report/refresh", a.action(a.actReportRefresh))
	mux.HandleFunc("/actions/finance/refresh", a.action(func(ctx context.Context, t *app.Terminal, _ *http.Request) error {
		return t.RefreshFinance(ctx)
	}))
	mux.HandleFunc("/actions/finance/form/open", a.action(a.actFinanceForm(true)))
	mux.HandleFunc("/actions/finance/form/close", a.action(a.actFinanceForm(false)))
	mux.HandleFunc("/actions/finance/procurement", a.action(func(ctx context.Context, t *app.Terminal, r *http.Request) error {
		return t.SubmitProcurement(ctx, finance.ProcurementForm{
			SupplierID: r.PostFormValue("supplierId"),
			Cost:       finance.ParseAmount(r.PostFormValue("cost")),
		})
	}))
	mux.HandleFunc("/actions/finance/invoice", a.action(func(ctx context.Context, t *app.Terminal, r *http.Request) error {
		return t.SubmitInvoice(ctx, finance.InvoiceForm{
			SupplierID: r.PostFormValue("supplierId"),
			Amount:     finance.ParseAmount(r.PostFormValue("amount")),
			DueDate:    r.PostFormValue("dueDate"),
		})
	}))
	mux.HandleFunc("/actions/finance/pay-supplier", a.action(func(ctx context.Context, t *app.Terminal, r *http.Request) error {
		return t.SubmitPaySupplier(ctx, finance.PaySupplierForm{
			SupplierID:    r.PostFormValue("supplierId"),
			ProcurementID: r.PostFormValue("procurementId"),
			Amount:        finance.ParseAmount(r.PostFormValue("amount")),
		})
	}))

	return a.withMiddleware(mux)
}

type actionFunc func(ctx context.Context, t *app.Terminal, r *http.Request) error

// action wraps a terminal mutation. Browsers are redirected back to the page;
// clients asking for JSON get the new state.
func (a *API) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			a.writeMethodNotAllowed(w)
			return
		}
		term, err := a.sessions.Resolve(w, r)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}

		if err := fn(r.Context(), term, r); err != nil {
			status := statusFor(err)
			a.log.WithError(err).WithFields(logrus.Fields{
				"terminal_id": term.ID(),
				"path":        r.URL.Path,
				"status":      status,
			}).Debug("action rejected")
			a.writeError(w, status, err)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, term.Snapshot())
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (a *API) actView(_ context.Context, t *app.Terminal, r *http.Request) error {
	return t.ShowView(ui.View(strings.TrimSpace(r.PostFormValue("view"))))
}

func (a *API) actQuantity(_ context.Context, t *app.Terminal, r *http.Request) error {
	index, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("index")))
	if err != nil {
		return fmt.Errorf("%w: index", errBadRequest)
	}
	delta, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("delta")))
	if err != nil {
		return fmt.Errorf("%w: delta", errBadRequest)
	}
	return t.ChangeQuantity(index, delta)
}

func (a *API) actGateOpen(_ context.Context, t *app.Terminal, r *http.Request) error {
	target, err := gate.ParseTarget(strings.TrimSpace(r.PostFormValue("target")))
	if err != nil {
		return err
	}
	return t.RequestAccess(target)
}

func (a *API) actReportRefresh(ctx context.Context, t *app.Terminal, r *http.Request) error {
	return t.RefreshReport(ctx, domain.ReportQuery{
		Start:         strings.TrimSpace(r.PostFormValue("start")),
		End:           strings.TrimSpace(r.PostFormValue("end")),
		CartID:        strings.TrimSpace(r.PostFormValue("cartId")),
		PaymentMethod: strings.ToUpper(strings.TrimSpace(r.PostFormValue("paymentMethod"))),
		Page:          parsePositive(r.PostFormValue("page"), 1, 0),
		PageSize:      parsePositive(r.PostFormValue("pageSize"), 0, 200),
	})
}

func (a *API) actFinanceForm(open bool) actionFunc {
	return func(_ context.Context, t *app.Terminal, r *http.Request) error {
		m, err := ui.ParseModal(strings.TrimSpace(r.PostFormValue("form")))
		if err != nil {
			return err
		}
		if open {
			return t.OpenFinanceForm(m)
		}
		return t.CloseFinanceForm(m)
	}
}

func (a *API) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		a.writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	term, err := a.sessions.Resolve(w, r)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, pageData{Screen: term.Snapshot(), CSRFToken: a.generateCSRFToken()}); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	term, err := a.sessions.Resolve(w, r)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, term.Snapshot())
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients send it as the X-CSRF-Token header or the csrf_token form field.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		csrfField: a.generateCSRFToken(),
	})
}

type exportFormat struct {
	contentType string
	filename    string
	write       func(buf *bytes.Buffer, view report.View) error
}

var (
	exportXLSX = exportFormat{
		contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		filename:    "sales-report.xlsx",
		write:       func(buf *bytes.Buffer, view report.View) error { return report.WriteXLSX(buf, view) },
	}
	exportCSV = exportFormat{
		contentType: "text/csv; charset=utf-8",
		filename:    "sales-report.csv",
		write:       func(buf *bytes.Buffer, view report.View) error { return report.WriteCSV(buf, view) },
	}
)

// handleExport serves the report currently on screen. It never fetches.
func (a *API) handleExport(format exportFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			a.writeMethodNotAllowed(w)
			return
		}
		term, err := a.sessions.Resolve(w, r)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		view, err := term.ReportView()
		if err != nil {
			a.writeError(w, statusFor(err), err)
			return
		}

		var buf bytes.Buffer
		if err := format.write(&buf, view); err != nil {
			a.writeError(w, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", format.contentType)
		w.Header().Set("Content-Disposition", "attachment; filename="+format.filename)
		_, _ = w.Write(buf.Bytes())
	}
}

// checkCSRF enforces CSRF token validation for POST requests.
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		return true
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if token == "" {
		token = strings.TrimSpace(r.PostFormValue(csrfField))
	}
	if !a.validateCSRFToken(token) {
		a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"elapsed": time.Since(startedAt).String(),
		}).Info("request")
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrViewLocked):
		return http.StatusForbidden
	case errors.Is(err, app.ErrQrisDisabled):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, gate.ErrNoPendingRequest),
		errors.Is(err, app.ErrModalOpen),
		errors.Is(err, app.ErrNotAvailable),
		errors.Is(err, report.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, ui.ErrUnknownView),
		errors.Is(err, ui.ErrUnknownModal),
		errors.Is(err, gate.ErrUnknownTarget),
		errors.Is(err, catalog.ErrUnknownItem),
		errors.Is(err, app.ErrNotFinanceForm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}

func parsePositive(raw string, fallback int, max int) int {
	n := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithField("status", status).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
