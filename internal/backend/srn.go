package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// CreateSRN posts a new SRN.
func (c *Client) CreateSRN(ctx context.Context, token string, in SRN) (SRN, error) {
	var out SRN
	err := c.sendJSON(ctx, token, http.MethodPost, "/api/srn/add", in, &out)
	return out, err
}

// UpdateSRN replaces an SRN.
func (c *Client) UpdateSRN(ctx context.Context, token string, id int64, in SRN) (SRN, error) {
	var out SRN
	err := c.sendJSON(ctx, token, http.MethodPut, idPath("/api/srn/edit/%d", id), in, &out)
	return out, err
}

// DeleteSRN removes an SRN.
func (c *Client) DeleteSRN(ctx context.Context, token string, id int64) error {
	return c.sendJSON(ctx, token, http.MethodDelete, idPath("/api/srn/%d", id), nil, nil)
}

// SRN fetches one SRN.
func (c *Client) SRN(ctx context.Context, token string, id int64) (SRN, error) {
	var out SRN
	err := c.getJSON(ctx, token, idPath("/api/srn/%d", id), nil, &out)
	return out, err
}

// SRNs lists every SRN of the tenant.
func (c *Client) SRNs(ctx context.Context, token string) ([]SRN, error) {
	var out []SRN
	if err := c.getJSON(ctx, token, "/api/srn/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SRNsByPO lists SRNs recorded against a PO.
func (c *Client) SRNsByPO(ctx context.Context, token string, poID int64) ([]SRN, error) {
	var out []SRN
	if err := c.getJSON(ctx, token, idPath("/api/srn/po/%d", poID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SRNExists asks the backend whether any SRN is recorded against the PO or
// milestone.
func (c *Client) SRNExists(ctx context.Context, token string, poID int64, msID *int64) (bool, error) {
	query := url.Values{"poId": {strconv.FormatInt(poID, 10)}}
	if msID != nil {
		query.Set("msId", strconv.FormatInt(*msID, 10))
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.getJSON(ctx, token, "/api/srn/check", query, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// LinkedAmounts returns the consumption and invoice sums linked to an SRN.
func (c *Client) LinkedAmounts(ctx context.Context, token string, id int64) (LinkedAmounts, error) {
	var out LinkedAmounts
	err := c.getJSON(ctx, token, idPath("/api/srn/%d/linked-amounts", id), nil, &out)
	return out, err
}
