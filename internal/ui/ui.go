package ui

import (
	"errors"
	"time"
)

var (
	ErrUnknownView  = errors.New("unknown view")
	ErrUnknownModal = errors.New("unknown modal")
)

type View string

const (
	ViewHome    View = "home"
	ViewOrder   View = "order"
	ViewReport  View = "report"
	ViewFinance View = "finance"
)

var views = []View{ViewHome, ViewOrder, ViewReport, ViewFinance}

func ParseView(raw string) (View, error) {
	for _, v := range views {
		if string(v) == raw {
			return v, nil
		}
	}
	return "", ErrUnknownView
}

type ViewState struct {
	Name   View `json:"name"`
	Active bool `json:"active"`
}

type Router struct {
	active View
}

func NewRouter() *Router {
	return &Router{active: ViewHome}
}

// Show makes name the only active view.
func (r *Router) Show(name View) error {
	if _, err := ParseView(string(name)); err != nil {
		return err
	}
	r.active = name
	return nil
}

func (r *Router) Active() View {
	return r.active
}

func (r *Router) States() []ViewState {
	out := make([]ViewState, 0, len(views))
	for _, v := range views {
		out = append(out, ViewState{Name: v, Active: v == r.active})
	}
	return out
}

type Modal string

const (
	ModalPayment     Modal = "payment"
	ModalCash        Modal = "cash"
	ModalQris        Modal = "qris"
	ModalPassword    Modal = "password"
	ModalProcurement Modal = "procurement"
	ModalInvoice     Modal = "invoice"
	ModalPaySupplier Modal = "pay-supplier"
)

var modals = []Modal{ModalPayment, ModalCash, ModalQris, ModalPassword, ModalProcurement, ModalInvoice, ModalPaySupplier}

func ParseModal(raw string) (Modal, error) {
	for _, m := range modals {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", ErrUnknownModal
}

// Overlay is a single slot: at most one modal is open at any time.
type Overlay struct {
	active Modal
}

func (o *Overlay) Open(m Modal) error {
	if _, err := ParseModal(string(m)); err != nil {
		return err
	}
	o.active = m
	return nil
}

// Close empties the slot if m is the open modal.
func (o *Overlay) Close(m Modal) {
	if o.active == m {
		o.active = ""
	}
}

func (o *Overlay) CloseAll() {
	o.active = ""
}

func (o *Overlay) Active() (Modal, bool) {
	return o.active, o.active != ""
}

func (o *Overlay) IsOpen(m Modal) bool {
	return o.active != "" && o.active == m
}

const ToastDuration = 2500 * time.Millisecond

type Toaster struct {
	message string
	shownAt time.Time
	now     func() time.Time
}

func NewToaster(now func() time.Time) *Toaster {
	if now == nil {
		now = time.Now
	}
	return &Toaster{now: now}
}

func (t *Toaster) Show(message string) {
	t.message = message
	t.shownAt = t.now()
}

// Current returns the last message while it is still on screen.
func (t *Toaster) Current() (string, bool) {
	if t.message == "" || t.now().Sub(t.shownAt) >= ToastDuration {
		return "", false
	}
	return t.message, true
}
