package domain

import "time"

type CatalogItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Image     string `json:"image"`
	Qty       int    `json:"qty"`
}

type CartLine struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// Cart is derived from the catalog on demand and never stored.
type Cart struct {
	Lines    []CartLine
	Subtotal int64
}

func (c Cart) GrandTotal() int64 {
	return c.Subtotal
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0 || c.Subtotal == 0
}

type TotalPrice struct {
	Subtotal   int64 `json:"subtotal"`
	GrandTotal int64 `json:"grandTotal"`
}

type CreateOrderRequest struct {
	OrderID     *string    `json:"orderId"`
	CartID      string     `json:"cartId"`
	ProductList []CartLine `json:"productList"`
	TotalPrice  TotalPrice `json:"totalPrice"`
	Currency    string     `json:"currency"`
	Channel     string     `json:"channel"`
}

type CreateOrderResponse struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type PaymentConfirmation struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	PaidAt        string `json:"paidAt"`
}

type ConfirmPaymentResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

type FulfillmentPayment struct {
	Status        string `json:"status"`
	Method        string `json:"method"`
	TransactionID string `json:"transactionId"`
}

type FulfillmentItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type FulfillmentEvent struct {
	OrderID        string             `json:"orderId"`
	CartID         string             `json:"cartId"`
	Payment        FulfillmentPayment `json:"payment"`
	Items          []FulfillmentItem  `json:"items"`
	EventType      string             `json:"eventType"`
	FulfilledAt    string             `json:"fulfilledAt"`
	IdempotencyKey string             `json:"idempotencyKey"`
}

type KitchenResponse struct {
	OrderID         string `json:"orderId"`
	Accepted        bool   `json:"accepted"`
	KitchenTicketID string `json:"kitchenTicketId"`
}

type ReportQuery struct {
	Start         string
	End           string
	CartID        string
	PaymentMethod string
	Page          int
	PageSize      int
}

type ReportSummary struct {
	Orders     int64  `json:"orders"`
	PaidOrders int64  `json:"paidOrders"`
	Revenue    int64  `json:"revenue"`
	Currency   string `json:"currency"`
	TotalRows  int64  `json:"totalRows"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

type ReportItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

type ReportRow struct {
	OrderID         string       `json:"orderId"`
	PaidAt          string       `json:"paidAt"`
	CartID          string       `json:"cartId"`
	Amount          int64        `json:"amount"`
	Method          string       `json:"method"`
	Status          string       `json:"status"`
	Items           []ReportItem `json:"items"`
	KitchenTicketID string       `json:"kitchenTicketId"`
}

type SalesReport struct {
	Summary *ReportSummary `json:"summary"`
	Rows    []ReportRow    `json:"rows"`
	Page    int            `json:"page"`
	HasMore bool           `json:"hasMore"`
}

type MaterialBatch struct {
	BatchID   string `json:"batchId"`
	SKU       string `json:"sku"`
	Quantity  int64  `json:"quantity"`
	Timestamp string `json:"timestamp"`
}

type ProcurementItem struct {
	SKU  string `json:"sku"`
	Qty  int    `json:"qty"`
	Cost int64  `json:"cost"`
}

type Procurement struct {
	ProcurementID string            `json:"procurementId"`
	SupplierID    string            `json:"supplierId"`
	Items         []ProcurementItem `json:"items"`
	TotalCost     int64             `json:"totalCost"`
	Timestamp     string            `json:"timestamp"`
}

type InvoiceDetail struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

type PaymentInvoice struct {
	SupplierID  string          `json:"supplierId"`
	Details     []InvoiceDetail `json:"details"`
	TotalAmount int64           `json:"totalAmount"`
	DueDate     string          `json:"dueDate"`
}

type SupplierPayment struct {
	SupplierID    string `json:"supplierId"`
	ProcurementID string `json:"procurementId"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	TerminalID string    `json:"terminal_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	CartIDWeb         = "CART-WEB"
	ChannelWeb        = "WEB"
	CurrencyIDR       = "IDR"
	PaymentCaptured   = "CAPTURED"
	EventFulfillment  = "FULFILLMENT"
	PaymentMethodCash = "CASH"
	PaymentMethodQris = "QRIS"
)

const (
	AuditCheckoutCompleted    = "checkout_completed"
	AuditCheckoutFailed       = "checkout_failed"
	AuditProcurementRecorded  = "procurement_recorded"
	AuditInvoiceCreated       = "invoice_created"
	AuditSupplierPaid         = "supplier_paid"
	AuditFinanceActionFailed  = "finance_action_failed"
	AuditGateDenied           = "gate_denied"
	AuditEntityOrder          = "order"
	AuditEntitySupplier       = "supplier"
	AuditEntityTerminalAccess = "terminal_access"
)
