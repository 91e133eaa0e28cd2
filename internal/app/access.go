package app

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/gate"
	"dagocoffee/counter/internal/report"
	"dagocoffee/counter/internal/ui"
)

// RequestAccess opens the password dialog for target. Any pending payment
// choice is dropped since the dialog takes its place.
func (t *Terminal) RequestAccess(target gate.Target) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.gate.Request(target); err != nil {
		return err
	}
	t.machine.Abandon()
	return t.overlay.Open(ui.ModalPassword)
}

func (t *Terminal) CancelAccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gate.Cancel()
	t.overlay.Close(ui.ModalPassword)
}

// SubmitPassword unlocks the pending target and loads it. A wrong password
// only sets the inline gate error. Failures are counted per client address
// when one is given, otherwise per terminal.
func (t *Terminal) SubmitPassword(ctx context.Context, client string, input string) error {
	t.mu.Lock()
	pending, _ := t.gate.Pending()
	target, err := t.gate.SubmitFrom(client, input)
	if err != nil {
		t.mu.Unlock()
		if errors.Is(err, gate.ErrIncorrectPassword) || errors.Is(err, gate.ErrTooManyAttempts) {
			t.log.WithFields(logrus.Fields{"target": pending, "client": client}).Warn("access denied")
			t.audit(ctx, domain.AuditLog{
				Action:     domain.AuditGateDenied,
				EntityType: domain.AuditEntityTerminalAccess,
				EntityID:   string(pending),
				Detail:     "reason=" + err.Error() + " client=" + client,
			})
			return nil
		}
		return err
	}

	t.overlay.Close(ui.ModalPassword)
	switch target {
	case gate.TargetReport:
		t.show(ui.ViewReport)
		t.reportQuery = domain.ReportQuery{}
	case gate.TargetFinance:
		t.show(ui.ViewFinance)
	}
	t.mu.Unlock()

	if target == gate.TargetReport {
		t.loadReport(ctx, domain.ReportQuery{})
	} else {
		t.loadFinance(ctx)
	}
	return nil
}

// RefreshReport reloads the report with new filters.
func (t *Terminal) RefreshReport(ctx context.Context, query domain.ReportQuery) error {
	t.mu.Lock()
	active := t.router.Active()
	t.mu.Unlock()

	if active != ui.ViewReport {
		return ErrViewLocked
	}
	t.loadReport(ctx, query)
	return nil
}

// ReportView returns the report currently on screen. Rendered views are
// never mutated, so the copy may be used without the lock.
func (t *Terminal) ReportView() (report.View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.router.Active() != ui.ViewReport {
		return report.View{}, ErrViewLocked
	}
	if t.report == nil {
		return report.View{}, nil
	}
	return *t.report, nil
}

// loadReport stores the result only if the report view is still on screen.
func (t *Terminal) loadReport(ctx context.Context, query domain.ReportQuery) {
	view, err := t.svc.Reports.Load(ctx, query)
	if err != nil {
		t.log.WithError(err).Warn("report unavailable")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.router.Active() == ui.ViewReport {
		t.reportQuery = query
		t.report = &view
	}
}
