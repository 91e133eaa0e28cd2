package finance

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dagocoffee/counter/internal/cache"
	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/money"
	"dagocoffee/counter/internal/store"
)

const (
	RevenueError    = "Error"
	activityLimit   = 10
	defaultCacheTTL = 30 * time.Second
)

type Backend interface {
	GetSalesReport(ctx context.Context) (domain.SalesReport, error)
	GetRawMaterialLog(ctx context.Context) ([]domain.MaterialBatch, error)
	RecordProcurement(ctx context.Context, procurement domain.Procurement) error
	CreatePaymentInvoice(ctx context.Context, invoice domain.PaymentInvoice) error
	PaySupplier(ctx context.Context, payment domain.SupplierPayment) error
}

type MaterialRow struct {
	BatchID   string `json:"batchId"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	Timestamp string `json:"timestamp"`
}

type Activity struct {
	Action   string `json:"action"`
	EntityID string `json:"entityId"`
	Detail   string `json:"detail"`
	At       string `json:"at"`
}

// View is the rendered dashboard. Each section carries its own failure flag.
type View struct {
	Revenue        string        `json:"revenue"`
	RevenueFailed  bool          `json:"revenueFailed"`
	MaterialCount  string        `json:"materialCount"`
	Materials      []MaterialRow `json:"materials"`
	MaterialFailed bool          `json:"materialFailed"`
	Activity       []Activity    `json:"activity"`
	ActivityFailed bool          `json:"activityFailed"`
	LoadedAt       time.Time     `json:"loadedAt"`
}

type Dashboard struct {
	backend  Backend
	cache    cache.Cache
	cacheTTL time.Duration
	audit    store.Repository
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewDashboard(backend Backend, c cache.Cache, cacheTTL time.Duration, audit store.Repository, now func() time.Time, logger logrus.FieldLogger) *Dashboard {
	if c == nil {
		c = cache.NoopCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dashboard{
		backend:  backend,
		cache:    c,
		cacheTTL: cacheTTL,
		audit:    audit,
		now:      now,
		log:      logger.WithField("module", "finance"),
	}
}

// Load fetches every section concurrently. A failing section is flagged in
// the view and never blocks the others.
func (d *Dashboard) Load(ctx context.Context) View {
	var view View
	var g errgroup.Group

	g.Go(func() error {
		revenue, err := d.revenue(ctx)
		if err != nil {
			d.log.WithError(err).Warn("revenue fetch failed")
			view.Revenue = RevenueError
			view.RevenueFailed = true
			return nil
		}
		view.Revenue = money.FormatIDR(revenue)
		return nil
	})
	g.Go(func() error {
		batches, err := d.materials(ctx)
		if err != nil {
			d.log.WithError(err).Warn("material log fetch failed")
			view.MaterialFailed = true
			return nil
		}
		view.MaterialCount = strconv.Itoa(len(batches)) + " Batches"
		view.Materials = MaterialRows(batches)
		return nil
	})
	g.Go(func() error {
		activity, err := d.activity(ctx)
		if err != nil {
			d.log.WithError(err).Warn("audit log read failed")
			view.ActivityFailed = true
			return nil
		}
		view.Activity = activity
		return nil
	})
	_ = g.Wait()

	view.LoadedAt = d.now().UTC()
	return view
}

// MaterialRows renders newest first, the reverse of the fetch order.
func MaterialRows(batches []domain.MaterialBatch) []MaterialRow {
	rows := make([]MaterialRow, 0, len(batches))
	for i := len(batches) - 1; i >= 0; i-- {
		b := batches[i]
		rows = append(rows, MaterialRow{
			BatchID:   orDash(b.BatchID),
			SKU:       orDash(b.SKU),
			Quantity:  b.Quantity,
			Timestamp: orDash(b.Timestamp),
		})
	}
	return rows
}

// InvalidateRevenue drops the cached revenue so the next load refetches it.
func (d *Dashboard) InvalidateRevenue(ctx context.Context) {
	d.invalidate(ctx, cache.KeyFinanceRevenue)
}

func (d *Dashboard) invalidate(ctx context.Context, keys ...string) {
	if err := d.cache.Delete(ctx, keys...); err != nil {
		d.log.WithError(err).Warn("cache invalidation failed")
	}
}

func (d *Dashboard) revenue(ctx context.Context) (int64, error) {
	var cached int64
	if d.cacheGet(ctx, cache.KeyFinanceRevenue, &cached) {
		return cached, nil
	}

	report, err := d.backend.GetSalesReport(ctx)
	if err != nil {
		return 0, err
	}
	var revenue int64
	if report.Summary != nil {
		revenue = report.Summary.Revenue
	}
	d.cacheSet(ctx, cache.KeyFinanceRevenue, revenue)
	return revenue, nil
}

func (d *Dashboard) materials(ctx context.Context) ([]domain.MaterialBatch, error) {
	var cached []domain.MaterialBatch
	if d.cacheGet(ctx, cache.KeyFinanceMaterials, &cached) {
		return cached, nil
	}

	batches, err := d.backend.GetRawMaterialLog(ctx)
	if err != nil {
		return nil, err
	}
	d.cacheSet(ctx, cache.KeyFinanceMaterials, batches)
	return batches, nil
}

func (d *Dashboard) activity(ctx context.Context) ([]Activity, error) {
	if d.audit == nil {
		return nil, nil
	}
	logs, err := d.audit.ListAuditLogs(ctx, "", activityLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(logs))
	for _, entry := range logs {
		out = append(out, Activity{
			Action:   entry.Action,
			EntityID: entry.EntityID,
			Detail:   entry.Detail,
			At:       entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

func (d *Dashboard) cacheGet(ctx context.Context, key string, dest any) bool {
	hit, err := d.cache.Get(ctx, key, dest)
	if err != nil {
		d.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	return hit
}

func (d *Dashboard) cacheSet(ctx context.Context, key string, value any) {
	if err := d.cache.Set(ctx, key, value, d.cacheTTL); err != nil {
		d.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
