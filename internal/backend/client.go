package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/domain"
)

const (
	PathCreateOrder          = "/api/createOrder"
	PathConfirmPayment       = "/api/confirmPayment"
	PathSendToKitchen        = "/api/sendToKitchen"
	PathReportSales          = "/api/reportSales"
	PathGetSalesReport       = "/api/getSalesReport"
	PathGetRawMaterialLog    = "/api/getRawMaterialLog"
	PathRecordProcurement    = "/api/recordProcurement"
	PathCreatePaymentInvoice = "/api/createPaymentInvoice"
	PathPaySupplier          = "/api/paySupplier"
)

const maxResponseBytes = 4 << 20

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.WithField("module", "backend"),
	}
}

func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	var resp domain.CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, PathCreateOrder, nil, req, &resp); err != nil {
		return domain.CreateOrderResponse{}, err
	}
	return resp, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, req domain.PaymentConfirmation) (domain.ConfirmPaymentResponse, error) {
	var resp domain.ConfirmPaymentResponse
	if err := c.do(ctx, http.MethodPost, PathConfirmPayment, nil, req, &resp); err != nil {
		return domain.ConfirmPaymentResponse{}, err
	}
	return resp, nil
}

func (c *Client) SendToKitchen(ctx context.Context, event domain.FulfillmentEvent) (domain.KitchenResponse, error) {
	var resp domain.KitchenResponse
	if err := c.do(ctx, http.MethodPost, PathSendToKitchen, nil, event, &resp); err != nil {
		return domain.KitchenResponse{}, err
	}
	return resp, nil
}

func (c *Client) ReportSales(ctx context.Context, query domain.ReportQuery) (domain.SalesReport, error) {
	var report domain.SalesReport
	if err := c.do(ctx, http.MethodGet, PathReportSales, reportParams(query), nil, &report); err != nil {
		return domain.SalesReport{}, err
	}
	return report, nil
}

func (c *Client) GetSalesReport(ctx context.Context) (domain.SalesReport, error) {
	var report domain.SalesReport
	if err := c.do(ctx, http.MethodGet, PathGetSalesReport, nil, nil, &report); err != nil {
		return domain.SalesReport{}, err
	}
	return report, nil
}

func (c *Client) GetRawMaterialLog(ctx context.Context) ([]domain.MaterialBatch, error) {
	var logs []domain.MaterialBatch
	if err := c.do(ctx, http.MethodGet, PathGetRawMaterialLog, nil, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) RecordProcurement(ctx context.Context, procurement domain.Procurement) error {
	return c.do(ctx, http.MethodPost, PathRecordProcurement, nil, procurement, nil)
}

func (c *Client) CreatePaymentInvoice(ctx context.Context, invoice domain.PaymentInvoice) error {
	return c.do(ctx, http.MethodPost, PathCreatePaymentInvoice, nil, invoice, nil)
}

func (c *Client) PaySupplier(ctx context.Context, payment domain.SupplierPayment) error {
	return c.do(ctx, http.MethodPost, PathPaySupplier, nil, payment, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, body any, dest any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer res.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  res.StatusCode,
		"elapsed": time.Since(startedAt).String(),
	}).Debug("backend call")

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Endpoint: path, Status: res.StatusCode, Message: errorMessage(raw)}
	}

	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return ""
}

func reportParams(query domain.ReportQuery) url.Values {
	params := url.Values{}
	if query.Start != "" {
		params.Set("start", query.Start)
	}
	if query.End != "" {
		params.Set("end", query.End)
	}
	if query.CartID != "" {
		params.Set("cartId", query.CartID)
	}
	if query.PaymentMethod != "" {
		params.Set("paymentMethod", query.PaymentMethod)
	}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(query.PageSize))
	}
	return params
}

// StatusCode returns the HTTP status carried by err, or 0 when the request
// never got a response.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}
