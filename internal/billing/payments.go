package billing

import "context"

// Payments is the external invoicing contract.
type Payments interface {
	CreateInvoiceItem(ctx context.Context, req InvoiceItemRequest) (string, error)
	// CreateInvoice collects the customer's pending items into an invoice and finalizes it.
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
}

type InvoiceItemRequest struct {
	CustomerID     string
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type InvoiceRequest struct {
	CustomerID     string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Invoice struct {
	ID     string
	Status string
}

// CustomerDirectory resolves an account's payment customer reference.
type CustomerDirectory interface {
	CustomerID(ctx context.Context, accountID string) (string, bool, error)
}
