package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/money"
)

const MessageLoadFailed = "Failed to load report"

type Source interface {
	ReportSales(ctx context.Context, query domain.ReportQuery) (domain.SalesReport, error)
}

type Row struct {
	OrderID         string `json:"orderId"`
	PaidAt          string `json:"paidAt"`
	Items           string `json:"items"`
	Amount          string `json:"amount"`
	AmountValue     int64  `json:"amountValue"`
	Method          string `json:"method"`
	KitchenTicketID string `json:"kitchenTicketId"`
}

// View is the rendered report. When Error is set the other fields are empty.
type View struct {
	Summary  string             `json:"summary"`
	Rows     []Row              `json:"rows"`
	Page     int                `json:"page"`
	HasMore  bool               `json:"hasMore"`
	Query    domain.ReportQuery `json:"-"`
	Error    string             `json:"error,omitempty"`
	LoadedAt time.Time          `json:"loadedAt"`
}

func (v View) Loaded() bool {
	return v.Error == "" && !v.LoadedAt.IsZero()
}

type Renderer struct {
	source Source
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewRenderer(source Source, now func() time.Time, logger logrus.FieldLogger) *Renderer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Renderer{source: source, now: now, log: logger.WithField("module", "report")}
}

// Load never returns a partially rendered view: a failed fetch yields a view
// carrying only the user-facing error message.
func (r *Renderer) Load(ctx context.Context, query domain.ReportQuery) (View, error) {
	data, err := r.source.ReportSales(ctx, query)
	if err != nil {
		r.log.WithError(err).Warn("report fetch failed")
		return View{Query: query, Error: MessageLoadFailed}, fmt.Errorf("load report: %w", err)
	}

	view := Build(data)
	view.Query = query
	view.LoadedAt = r.now().UTC()
	return view, nil
}

func Build(data domain.SalesReport) View {
	rows := make([]Row, 0, len(data.Rows))
	for _, row := range data.Rows {
		rows = append(rows, Row{
			OrderID:         row.OrderID,
			PaidAt:          row.PaidAt,
			Items:           ItemsText(row.Items),
			Amount:          money.FormatIDR(row.Amount),
			AmountValue:     row.Amount,
			Method:          row.Method,
			KitchenTicketID: row.KitchenTicketID,
		})
	}

	page := data.Page
	if page < 1 {
		page = 1
	}
	return View{
		Summary: SummaryLine(data.Summary),
		Rows:    rows,
		Page:    page,
		HasMore: data.HasMore,
	}
}

// SummaryLine treats a missing summary as all zeros.
func SummaryLine(summary *domain.ReportSummary) string {
	var s domain.ReportSummary
	if summary != nil {
		s = *summary
	}
	return fmt.Sprintf("Orders: %d  •  Revenue: %s  •  Paid Orders: %d", s.Orders, money.FormatIDR(s.Revenue), s.PaidOrders)
}

func ItemsText(items []domain.ReportItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		label := item.Name
		if label == "" {
			label = item.SKU
		}
		parts = append(parts, fmt.Sprintf("%dx %s", item.Qty, label))
	}
	return strings.Join(parts, ", ")
}
