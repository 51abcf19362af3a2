package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Users lists the users of a tenant.
func (c *Client) Users(ctx context.Context, token, tenantID string) ([]User, error) {
	var out []User
	if err := c.getJSON(ctx, token, idPath("/api/tenants/%s/users", tenantID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Projects lists the projects of a tenant.
func (c *Client) Projects(ctx context.Context, token, tenantID string) ([]Project, error) {
	var out []Project
	if err := c.getJSON(ctx, token, idPath("/api/tenants/%s/projects", tenantID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject stores a project for the tenant.
func (c *Client) CreateProject(ctx context.Context, token, tenantID string, in ProjectRequest) (Project, error) {
	var out Project
	err := c.sendJSON(ctx, token, http.MethodPost, idPath("/api/tenants/%s/projects", tenantID), in, &out)
	return out, err
}

// GenerateProjectCode asks the backend for the next project code.
func (c *Client) GenerateProjectCode(ctx context.Context, token string) (string, error) {
	var out GeneratedCode
	if err := c.getJSON(ctx, token, "/api/projects/generate-code", nil, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

// Systems lists the impacted systems known to the tenant.
func (c *Client) Systems(ctx context.Context, token string) ([]System, error) {
	var out []System
	if err := c.getJSON(ctx, token, "/api/systems/tenant", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrganizationsByType lists organizations of one type.
func (c *Client) OrganizationsByType(ctx context.Context, token, orgType string) ([]Organization, error) {
	var out []Organization
	if err := c.getJSON(ctx, token, idPath("/api/organizations/type/%s", orgType), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Organizations lists every organization of the tenant.
func (c *Client) Organizations(ctx context.Context, token string) ([]Organization, error) {
	var out []Organization
	if err := c.getJSON(ctx, token, "/api/organizations/tenant", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TimesheetTasks lists tasks logged by userID between start and end
// inclusive, both formatted as 2006-01-02.
func (c *Client) TimesheetTasks(ctx context.Context, token string, userID int64, start, end string) ([]TimesheetTask, error) {
	query := url.Values{
		"userId": {strconv.FormatInt(userID, 10)},
		"start":  {start},
		"end":    {end},
	}
	var out []TimesheetTask
	if err := c.getJSON(ctx, token, "/api/timesheet-tasks/admin-between", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}
