package catalog

import (
	"errors"

	"dagocoffee/counter/internal/domain"
)

var ErrUnknownItem = errors.New("unknown catalog item")

func DefaultDrinks() []domain.CatalogItem {
	return []domain.CatalogItem{
		{SKU: "LATTE", Name: "Latte", UnitPrice: 25000, Image: "/ui/img/latte.png"},
		{SKU: "CAPPUCCINO", Name: "Cappuccino", UnitPrice: 27000, Image: "/ui/img/cappuccino.png"},
		{SKU: "AMERICANO", Name: "Americano", UnitPrice: 20000, Image: "/ui/img/americano.png"},
		{SKU: "MATCHA", Name: "Matcha", UnitPrice: 28000, Image: "/ui/img/matcha.png"},
		{SKU: "JASMINE", Name: "Jasmine Tea", UnitPrice: 15000, Image: "/ui/img/jasmine.png"},
		{SKU: "MACCHIATO", Name: "Macchiato", UnitPrice: 22000, Image: "/ui/img/macchiato.png"},
	}
}

// Store holds the fixed item set of one terminal. Items are never added or
// removed after construction; only quantities change.
type Store struct {
	items []domain.CatalogItem
}

func New(items []domain.CatalogItem) *Store {
	copied := make([]domain.CatalogItem, len(items))
	copy(copied, items)
	for i := range copied {
		copied[i].Qty = 0
	}
	return &Store{items: copied}
}

func (s *Store) Len() int {
	return len(s.items)
}

// ChangeQuantity applies delta to the item at index, clamping at zero.
func (s *Store) ChangeQuantity(index int, delta int) error {
	if index < 0 || index >= len(s.items) {
		return ErrUnknownItem
	}
	s.items[index].Qty = max(0, s.items[index].Qty+delta)
	return nil
}

func (s *Store) ResetAll() {
	for i := range s.items {
		s.items[i].Qty = 0
	}
}

func (s *Store) Items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Total() int64 {
	var total int64
	for _, item := range s.items {
		total += int64(item.Qty) * item.UnitPrice
	}
	return total
}

// Cart returns the lines with a positive quantity, in catalog order.
func (s *Store) Cart() domain.Cart {
	cart := domain.Cart{Lines: make([]domain.CartLine, 0, len(s.items))}
	for _, item := range s.items {
		if item.Qty <= 0 {
			continue
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			SKU:       item.SKU,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
		cart.Subtotal += int64(item.Qty) * item.UnitPrice
	}
	return cart
}
