package app

import (
	"dagocoffee/counter/internal/finance"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/money"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/ui"
)

type Card struct {
	Index int    `json:"index"`
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Image string `json:"image"`
	Qty   int    `json:"qty"`
}

// Screen is everything needed to draw the terminal. It is rebuilt from
// state on every call.
type Screen struct {
	TerminalID  string         `json:"terminalId"`
	View        ui.View        `json:"view"`
	Views       []ui.ViewState `json:"views"`
	Cards       []Card         `json:"cards"`
	Total       string         `json:"total"`
	TotalValue  int64          `json:"totalValue"`
	Modal       ui.Modal       `json:"modal,omitempty"`
	Checkout    string         `json:"checkout"`
	Toast       string         `json:"toast,omitempty"`
	GateTarget  gate.Target    `json:"gateTarget,omitempty"`
	GateError   string         `json:"gateError,omitempty"`
	Report      *report.View   `json:"report,omitempty"`
	Finance     *finance.View  `json:"finance,omitempty"`
	QrisConfirm bool           `json:"qrisConfirm"`
}

func (t *Terminal) Snapshot() Screen {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := t.catalog.Items()
	cards := make([]Card, 0, len(items))
	for i, item := range items {
		cards = append(cards, Card{
			Index: i,
			SKU:   item.SKU,
			Name:  item.Name,
			Price: money.FormatIDR(item.UnitPrice),
			Image: item.Image,
			Qty:   item.Qty,
		})
	}

	total := t.catalog.Total()
	modal, _ := t.overlay.Active()
	toast, _ := t.toaster.Current()
	target, _ := t.gate.Pending()

	screen := Screen{
		TerminalID:  t.id,
		View:        t.router.Active(),
		Views:       t.router.States(),
		Cards:       cards,
		Total:       money.FormatIDR(total),
		TotalValue:  total,
		Modal:       modal,
		Checkout:    t.machine.Phase().String(),
		Toast:       toast,
		GateTarget:  target,
		GateError:   t.gate.Error(),
		QrisConfirm: t.svc.QrisConfirmEnabled,
	}
	if t.report != nil {
		r := *t.report
		screen.Report = &r
	}
	if t.finance != nil {
		f := *t.finance
		screen.Finance = &f
	}
	return screen
}
