package auth

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/po-console/internal/shared"
)

// HandOff is what the external login posts once the user is authenticated.
type HandOff struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"omitempty,email"`
	TenantID             string `json:"tenantId" validate:"required"`
	UserID               string `json:"userId" validate:"required"`
	TenantName           string `json:"tenantName" validate:"max=255"`
	TenantLogoURL        string `json:"tenantLogoUrl" validate:"omitempty,url"`
	TenantEmail          string `json:"tenantEmail" validate:"omitempty,email"`
	TenantContact        string `json:"tenantContact" validate:"max=64"`
	TenantMailingAddress string `json:"tenantMailingAddress" validate:"max=1000"`
}

// Tenant converts the hand-off into the session tenant.
func (h HandOff) Tenant() shared.Tenant {
	return shared.Tenant{
		Token:          h.Token,
		Email:          h.Email,
		TenantID:       h.TenantID,
		UserID:         h.UserID,
		Name:           h.TenantName,
		LogoURL:        h.TenantLogoURL,
		ContactEmail:   h.TenantEmail,
		Contact:        h.TenantContact,
		MailingAddress: h.TenantMailingAddress,
	}
}

// Service wraps the session hand-off rules.
type Service struct {
	validate *validator.Validate
	audit    shared.AuditPort
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{validate: shared.NewValidator(), audit: audit, logger: logger}
}

// Start validates the hand-off and stores the tenant in the session. Any
// previous invoice draft belongs to another login and is dropped.
func (s *Service) Start(ctx context.Context, sess *shared.Session, in HandOff) (shared.Tenant, error) {
	if sess == nil {
		return shared.Tenant{}, shared.ErrUnauthenticated
	}
	if err := s.validate.Struct(in); err != nil {
		return shared.Tenant{}, shared.FromValidator(err)
	}
	tenant := in.Tenant()
	tenant.Store(sess)
	sess.Delete(shared.KeyInvoiceDraft)
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(tenant, "session.start", "session", tenant.UserID, nil))
	return tenant, nil
}

// End records the logout of an authenticated session.
func (s *Service) End(ctx context.Context, sess *shared.Session) {
	tenant, err := shared.TenantFromSession(sess)
	if err != nil {
		return
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(tenant, "session.end", "session", tenant.UserID, nil))
}
