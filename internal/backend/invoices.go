package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// Invoices lists generated invoices.
func (c *Client) Invoices(ctx context.Context, token string) ([]Invoice, error) {
	var out []Invoice
	if err := c.getJSON(ctx, token, "/api/invoices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvoiceProjects lists the projects invoices can be raised for.
func (c *Client) InvoiceProjects(ctx context.Context, token string) ([]Project, error) {
	var out []Project
	if err := c.getJSON(ctx, token, "/api/invoices/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateInvoice creates an invoice without attachments.
func (c *Client) GenerateInvoice(ctx context.Context, token string, in InvoiceRequest) (Invoice, error) {
	var out Invoice
	err := c.sendJSON(ctx, token, http.MethodPost, "/api/invoices/generate", in, &out)
	return out, err
}

// GenerateInvoiceWithAttachments creates an invoice and stores files in one
// multipart call. The invoice JSON travels in the "invoice" field.
func (c *Client) GenerateInvoiceWithAttachments(ctx context.Context, token string, in InvoiceRequest, files []FilePart) (Invoice, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return Invoice{}, err
	}
	var out Invoice
	err = c.postMultipart(ctx, token, "/api/invoices/generate-with-attachments",
		map[string]string{"invoice": string(payload)}, files, &out)
	return out, err
}

// PreviewInvoice renders the invoice document without storing it.
func (c *Client) PreviewInvoice(ctx context.Context, token string, in InvoiceRequest) (*Download, error) {
	return c.download(ctx, token, http.MethodPost, "/api/invoices/preview", in)
}

// DownloadInvoice streams a generated invoice document.
func (c *Client) DownloadInvoice(ctx context.Context, token string, id int64) (*Download, error) {
	return c.download(ctx, token, http.MethodGet, idPath("/api/invoices/download/%d", id), nil)
}

// DownloadInvoiceAttachment streams the n-th attachment of an invoice.
func (c *Client) DownloadInvoiceAttachment(ctx context.Context, token string, invoiceID int64, n int) (*Download, error) {
	return c.download(ctx, token, http.MethodGet, idPath("/api/invoices/download-attachment/%d/%d", invoiceID, n), nil)
}
