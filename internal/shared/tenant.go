package shared

import "errors"

// Session keys written at login and read by every console component.
const (
	KeyToken                = "token"
	KeyEmail                = "email"
	KeyTenantID             = "tenantId"
	KeyUserID               = "userId"
	KeyTenantName           = "tenantName"
	KeyTenantLogoURL        = "tenantLogoUrl"
	KeyTenantEmail          = "tenantEmail"
	KeyTenantContact        = "tenantContact"
	KeyTenantMailingAddress = "tenantMailingAddress"
	KeyInvoiceDraft         = "addInvoiceDraft"
)

// ErrUnauthenticated indicates the session carries no upstream token.
var ErrUnauthenticated = errors.New("session not authenticated")

// Tenant is the explicit session/config object handed to services. It is
// built once per request from the session.
type Tenant struct {
	Token          string `json:"-"`
	Email          string `json:"email"`
	TenantID       string `json:"tenantId"`
	UserID         string `json:"userId"`
	Name           string `json:"tenantName"`
	LogoURL        string `json:"tenantLogoUrl"`
	ContactEmail   string `json:"tenantEmail"`
	Contact        string `json:"tenantContact"`
	MailingAddress string `json:"tenantMailingAddress"`
}

// TenantFromSession reads the login fields back from the session.
func TenantFromSession(sess *Session) (Tenant, error) {
	if sess == nil || sess.Get(KeyToken) == "" {
		return Tenant{}, ErrUnauthenticated
	}
	return Tenant{
		Token:          sess.Get(KeyToken),
		Email:          sess.Get(KeyEmail),
		TenantID:       sess.Get(KeyTenantID),
		UserID:         sess.Get(KeyUserID),
		Name:           sess.Get(KeyTenantName),
		LogoURL:        sess.Get(KeyTenantLogoURL),
		ContactEmail:   sess.Get(KeyTenantEmail),
		Contact:        sess.Get(KeyTenantContact),
		MailingAddress: sess.Get(KeyTenantMailingAddress),
	}, nil
}

// Store writes the tenant fields into the session.
func (t Tenant) Store(sess *Session) {
	if sess == nil {
		return
	}
	sess.Set(KeyToken, t.Token)
	sess.Set(KeyEmail, t.Email)
	sess.Set(KeyTenantID, t.TenantID)
	sess.Set(KeyUserID, t.UserID)
	sess.Set(KeyTenantName, t.Name)
	sess.Set(KeyTenantLogoURL, t.LogoURL)
	sess.Set(KeyTenantEmail, t.ContactEmail)
	sess.Set(KeyTenantContact, t.Contact)
	sess.Set(KeyTenantMailingAddress, t.MailingAddress)
}
