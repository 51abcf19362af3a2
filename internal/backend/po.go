package backend

import (
	"context"
	"net/http"
)

// PurchaseOrders lists all POs of the tenant behind token.
func (c *Client) PurchaseOrders(ctx context.Context, token string) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	if err := c.getJSON(ctx, token, "/api/po/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PurchaseOrder fetches one PO.
func (c *Client) PurchaseOrder(ctx context.Context, token string, poID int64) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := c.getJSON(ctx, token, idPath("/api/po/%d", poID), nil, &out)
	return out, err
}

// POBalance is the remaining PO balance available to SRNs.
func (c *Client) POBalance(ctx context.Context, token string, poID int64) (Balance, error) {
	var out Balance
	err := c.getJSON(ctx, token, idPath("/api/po/pobalance/%d", poID), nil, &out)
	return out, err
}

// POBalanceForConsumption is the remaining PO balance available to consumptions.
func (c *Client) POBalanceForConsumption(ctx context.Context, token string, poID int64) (Balance, error) {
	var out Balance
	err := c.getJSON(ctx, token, idPath("/api/po/pobalance-con/%d", poID), nil, &out)
	return out, err
}

// Milestones lists every milestone of a PO.
func (c *Client) Milestones(ctx context.Context, token string, poID int64) ([]Milestone, error) {
	return c.milestones(ctx, token, idPath("/api/po-milestone/po/%d", poID))
}

// MilestonesForPO lists the milestones selectable for SRNs.
func (c *Client) MilestonesForPO(ctx context.Context, token string, poID int64) ([]Milestone, error) {
	return c.milestones(ctx, token, idPath("/api/po-milestone/getMilestoneForPo/%d", poID))
}

// MilestonesForConsumption lists the milestones selectable for consumptions.
func (c *Client) MilestonesForConsumption(ctx context.Context, token string, poID int64) ([]Milestone, error) {
	return c.milestones(ctx, token, idPath("/api/po-milestone/getMilestoneForPoForCon/%d", poID))
}

func (c *Client) milestones(ctx context.Context, token, path string) ([]Milestone, error) {
	var out []Milestone
	if err := c.getJSON(ctx, token, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MilestoneBalance is the remaining milestone balance available to SRNs.
func (c *Client) MilestoneBalance(ctx context.Context, token string, poID, msID int64) (Balance, error) {
	var out Balance
	err := c.getJSON(ctx, token, idPath("/api/po-milestone/milestonebalance/%d/%d", poID, msID), nil, &out)
	return out, err
}

// MilestoneBalanceForConsumption is the remaining milestone balance available to consumptions.
func (c *Client) MilestoneBalanceForConsumption(ctx context.Context, token string, poID, msID int64) (Balance, error) {
	var out Balance
	err := c.getJSON(ctx, token, idPath("/api/po-milestone/milestonebalance-consumption/%d/%d", poID, msID), nil, &out)
	return out, err
}

// CreateConsumption posts a new consumption and returns the stored record.
func (c *Client) CreateConsumption(ctx context.Context, token string, in Consumption) (Consumption, error) {
	var out Consumption
	err := c.sendJSON(ctx, token, http.MethodPost, "/api/po-consumption/add", in, &out)
	return out, err
}

// UpdateConsumption replaces an existing consumption.
func (c *Client) UpdateConsumption(ctx context.Context, token string, id int64, in Consumption) (Consumption, error) {
	var out Consumption
	err := c.sendJSON(ctx, token, http.MethodPut, idPath("/api/po-consumption/%d", id), in, &out)
	return out, err
}

// Consumption fetches one consumption.
func (c *Client) Consumption(ctx context.Context, token string, id int64) (Consumption, error) {
	var out Consumption
	err := c.getJSON(ctx, token, idPath("/api/po-consumption/%d", id), nil, &out)
	return out, err
}

// ConsumptionsByPO lists consumptions of a PO number.
func (c *Client) ConsumptionsByPO(ctx context.Context, token, poNumber string) ([]Consumption, error) {
	var out []Consumption
	if err := c.getJSON(ctx, token, idPath("/api/po-consumption/by-po/%s", poNumber), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConsumptionBalance is the consumption balance of a PO number.
func (c *Client) ConsumptionBalance(ctx context.Context, token, poNumber string) (Balance, error) {
	var out Balance
	err := c.getJSON(ctx, token, idPath("/api/po-consumption/balance/%s", poNumber), nil, &out)
	return out, err
}
