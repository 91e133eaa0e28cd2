// Package backendtest runs an in-process stand-in for the counter backend API.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"dagocoffee/counter/internal/backend"
	"dagocoffee/counter/internal/domain"
)

type Call struct {
	Method string
	Path   string
	Query  string
	Body   json.RawMessage
}

// Decode unmarshals the recorded request body into dest.
func (c Call) Decode(dest any) error {
	return json.Unmarshal(c.Body, dest)
}

type order struct {
	request domain.CreateOrderRequest
	paid    bool
	payment domain.PaymentConfirmation
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	failures  map[string]int
	delays    map[string]time.Duration
	orders    map[string]*order
	tickets   map[string]domain.KitchenResponse
	rows      []domain.ReportRow
	materials []domain.MaterialBatch
	orderSeq  int
	ticketSeq int
}

func New() *Server {
	s := &Server{
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		orders:   make(map[string]*order),
		tickets:  make(map[string]domain.KitchenResponse),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(backend.PathCreateOrder, s.handleCreateOrder)
	mux.HandleFunc(backend.PathConfirmPayment, s.handleConfirmPayment)
	mux.HandleFunc(backend.PathSendToKitchen, s.handleSendToKitchen)
	mux.HandleFunc(backend.PathReportSales, s.handleReport)
	mux.HandleFunc(backend.PathGetSalesReport, s.handleReport)
	mux.HandleFunc(backend.PathGetRawMaterialLog, s.handleMaterials)
	mux.HandleFunc(backend.PathRecordProcurement, s.handleAccepted("RECORDED"))
	mux.HandleFunc(backend.PathCreatePaymentInvoice, s.handleAccepted("CREATED"))
	mux.HandleFunc(backend.PathPaySupplier, s.handleAccepted("PAID"))
	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// Fail makes path answer with status until cleared with Fail(path, 0).
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

func (s *Server) SeedMaterials(batches ...domain.MaterialBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = append(s.materials, batches...)
}

func (s *Server) SeedRows(rows ...domain.ReportRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) Paths() []string {
	calls := s.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Path)
	}
	return out
}

func (s *Server) CallsTo(path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		status := s.failures[r.URL.Path]
		delay := s.delays[r.URL.Path]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"error": "INJECTED_FAILURE"})
			return
		}

		r.Body = http.NoBody
		if body != nil {
			r = r.WithContext(withBody(r.Context(), body))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.Unmarshal(bodyFrom(r.Context()), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.orderSeq++
	orderID := fmt.Sprintf("ORD-%s-%05d", time.Now().UTC().Format("2006-01-02"), s.orderSeq)
	s.orders[orderID] = &order{request: req}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, domain.CreateOrderResponse{
		OrderID:   orderID,
		Status:    "PENDING_PAYMENT",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentConfirmation
	if err := json.Unmarshal(bodyFrom(r.Context()), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[req.OrderID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "ORDER_NOT_FOUND"})
		return
	}
	if req.Amount != o.request.TotalPrice.GrandTotal {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "AMOUNT_MISMATCH"})
		return
	}
	o.paid = req.Status == domain.PaymentCaptured
	o.payment = req

	status := "PENDING_PAYMENT"
	if o.paid {
		status = "PAID"
	}
	writeJSON(w, http.StatusOK, domain.ConfirmPaymentResponse{OrderID: req.OrderID, OrderStatus: status})
}

func (s *Server) handleSendToKitchen(w http.ResponseWriter, r *http.Request) {
	var req domain.FulfillmentEvent
	if err := json.Unmarshal(bodyFrom(r.Context()), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[req.OrderID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "ORDER_NOT_FOUND"})
		return
	}
	if prior, seen := s.tickets[req.IdempotencyKey]; seen && req.IdempotencyKey != "" {
		writeJSON(w, http.StatusOK, prior)
		return
	}
	if !o.paid {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "ORDER_NOT_PAID"})
		return
	}

	s.ticketSeq++
	resp := domain.KitchenResponse{
		OrderID:         req.OrderID,
		Accepted:        true,
		KitchenTicketID: fmt.Sprintf("KT-%04d", s.ticketSeq),
	}
	if req.IdempotencyKey != "" {
		s.tickets[req.IdempotencyKey] = resp
	}

	items := make([]domain.ReportItem, 0, len(o.request.ProductList))
	for _, line := range o.request.ProductList {
		items = append(items, domain.ReportItem{SKU: line.SKU, Name: line.Name, Qty: line.Qty, UnitPrice: line.UnitPrice})
	}
	s.rows = append(s.rows, domain.ReportRow{
		OrderID:         req.OrderID,
		PaidAt:          o.payment.PaidAt,
		CartID:          o.request.CartID,
		Amount:          o.payment.Amount,
		Method:          o.payment.Method,
		Status:          "PAID",
		Items:           items,
		KitchenTicketID: resp.KitchenTicketID,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rows := make([]domain.ReportRow, 0, len(s.rows))
	method := r.URL.Query().Get("paymentMethod")
	var revenue int64
	for _, row := range s.rows {
		if method != "" && row.Method != method {
			continue
		}
		rows = append(rows, row)
		revenue += row.Amount
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.SalesReport{
		Summary: &domain.ReportSummary{
			Orders:     int64(len(rows)),
			PaidOrders: int64(len(rows)),
			Revenue:    revenue,
			Currency:   domain.CurrencyIDR,
			TotalRows:  int64(len(rows)),
			PageSize:   50,
			TotalPages: 1,
		},
		Rows: rows,
		Page: 1,
	})
}

func (s *Server) handleMaterials(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	logs := make([]domain.MaterialBatch, len(s.materials))
	copy(logs, s.materials)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAccepted(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data map[string]any
		_ = json.Unmarshal(bodyFrom(r.Context()), &data)
		writeJSON(w, http.StatusCreated, map[string]any{"status": status, "data": data})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
