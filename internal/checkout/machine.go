package checkout

import (
	"errors"

	"dagocoffee/counter/internal/domain"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid checkout transition")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingPaymentChoice
	PhaseAwaitingCash
	PhaseAwaitingQris
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingPaymentChoice:
		return "awaiting_payment_choice"
	case PhaseAwaitingCash:
		return "awaiting_cash_confirm"
	case PhaseAwaitingQris:
		return "awaiting_qris"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Machine tracks where one terminal is in the checkout flow. It performs no
// I/O; the caller runs the Processor between Begin and Finish.
type Machine struct {
	phase Phase
}

func (m *Machine) Phase() Phase {
	return m.phase
}

// Open starts payment selection for a non-empty cart.
func (m *Machine) Open(total int64) error {
	if m.phase != PhaseIdle {
		return ErrInvalidTransition
	}
	if total <= 0 {
		return ErrEmptyCart
	}
	m.phase = PhaseAwaitingPaymentChoice
	return nil
}

func (m *Machine) ChooseCash() error {
	return m.move(PhaseAwaitingPaymentChoice, PhaseAwaitingCash)
}

func (m *Machine) ChooseQris() error {
	return m.move(PhaseAwaitingPaymentChoice, PhaseAwaitingQris)
}

func (m *Machine) BackFromQris() error {
	return m.move(PhaseAwaitingQris, PhaseAwaitingPaymentChoice)
}

// Dismiss closes the payment choice without touching the cart.
func (m *Machine) Dismiss() error {
	return m.move(PhaseAwaitingPaymentChoice, PhaseIdle)
}

func (m *Machine) Cancel() error {
	return m.move(PhaseAwaitingCash, PhaseIdle)
}

// Begin enters Submitting from the confirmation step matching method.
func (m *Machine) Begin(method string) error {
	switch method {
	case domain.PaymentMethodCash:
		return m.move(PhaseAwaitingCash, PhaseSubmitting)
	case domain.PaymentMethodQris:
		return m.move(PhaseAwaitingQris, PhaseSubmitting)
	default:
		return ErrInvalidTransition
	}
}

// Finish ends a submission, whatever its outcome.
func (m *Machine) Finish() error {
	return m.move(PhaseSubmitting, PhaseIdle)
}

// Abandon drops any pending choice when another dialog takes the screen.
// A submission already in flight is left alone.
func (m *Machine) Abandon() {
	if m.phase != PhaseSubmitting {
		m.phase = PhaseIdle
	}
}

func (m *Machine) move(from Phase, to Phase) error {
	if m.phase != from {
		return ErrInvalidTransition
	}
	m.phase = to
	return nil
}
