package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"voice-agent-platform/pkg/logger"
)

type invoiceItemAPI interface {
	New(params *stripe.InvoiceItemParams) (*stripe.InvoiceItem, error)
}

type invoiceAPI interface {
	New(params *stripe.InvoiceParams) (*stripe.Invoice, error)
	FinalizeInvoice(id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error)
}

// StripePayments implements Payments with stripe-go.
type StripePayments struct {
	items    invoiceItemAPI
	invoices invoiceAPI
}

func NewStripePayments(secretKey string) *StripePayments {
	sc := client.New(secretKey, nil)
	return &StripePayments{items: sc.InvoiceItems, invoices: sc.Invoices}
}

func (p *StripePayments) CreateInvoiceItem(ctx context.Context, req InvoiceItemRequest) (string, error) {
	if req.CustomerID == "" || req.AmountMinor <= 0 {
		return "", errors.New("stripe: customer and positive amount are required")
	}
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	item, err := p.items.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create invoice item: %w", err)
	}
	return item.ID, nil
}

func (p *StripePayments) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if req.CustomerID == "" {
		return Invoice{}, errors.New("stripe: customer is required")
	}
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(req.CustomerID),
		AutoAdvance:                 stripe.Bool(true),
		PendingInvoiceItemsBehavior: stripe.String("include"),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	inv, err := p.invoices.New(params)
	if err != nil {
		return Invoice{}, fmt.Errorf("stripe: create invoice: %w", err)
	}

	fp := &stripe.InvoiceFinalizeInvoiceParams{}
	fp.Context = ctx
	final, err := p.invoices.FinalizeInvoice(inv.ID, fp)
	if err != nil {
		// The draft auto-advances on its own, so the invoice still counts as created.
		logger.From(ctx).Warn("stripe finalize failed", "invoice_id", inv.ID, "error", err.Error())
		return Invoice{ID: inv.ID, Status: string(inv.Status)}, nil
	}
	return Invoice{ID: final.ID, Status: string(final.Status)}, nil
}
