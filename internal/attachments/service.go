package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Store is the upstream attachment storage.
type Store interface {
	UploadAttachment(ctx context.Context, token, level string, referenceID int64, file backend.FilePart) (backend.AttachmentMeta, error)
	Attachments(ctx context.Context, token, level string, referenceID int64) ([]backend.AttachmentMeta, error)
	DownloadAttachment(ctx context.Context, token string, id int64) (*backend.Download, error)
	DeleteAttachment(ctx context.Context, token string, id int64) error
}

// UploadFailure reports one file that could not be stored.
type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// UploadReport is the per file outcome of an upload pass.
type UploadReport struct {
	Uploaded []backend.AttachmentMeta `json:"uploaded"`
	Failed   []UploadFailure          `json:"failed,omitempty"`
}

// Service uploads staged files and manages persisted attachments.
type Service struct {
	store  Store
	audit  shared.AuditPort
	logger *slog.Logger
}

// NewService constructs the attachment service.
func NewService(store Store, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger}
}

// Upload stores files one at a time against an already created record.
// A failing file is logged, audited and reported; the remaining files are
// still uploaded and the parent record is left as is.
func (s *Service) Upload(ctx context.Context, t shared.Tenant, level Level, referenceID int64, files []File) UploadReport {
	report := UploadReport{Uploaded: []backend.AttachmentMeta{}}
	for _, f := range files {
		meta, err := s.store.UploadAttachment(ctx, t.Token, string(level), referenceID, f.Part("file"))
		if err != nil {
			s.logger.Error("attachment upload failed",
				slog.String("level", string(level)),
				slog.Int64("reference_id", referenceID),
				slog.String("file", f.Name),
				slog.Any("error", err))
			shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "attachment.upload_failed", string(level),
				strconv.FormatInt(referenceID, 10), map[string]any{"file": f.Name, "size": f.Size, "error": err.Error()}))
			report.Failed = append(report.Failed, UploadFailure{Name: f.Name, Error: shared.UserSafeMessage(err)})
			continue
		}
		report.Uploaded = append(report.Uploaded, meta)
	}
	return report
}

// List returns the persisted attachments of a record.
func (s *Service) List(ctx context.Context, t shared.Tenant, level Level, referenceID int64) ([]backend.AttachmentMeta, error) {
	items, err := s.store.Attachments(ctx, t.Token, string(level), referenceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []backend.AttachmentMeta{}
	}
	return items, nil
}

// StageForRecord stages files for an existing record, counting what the
// record already stores. An edit without files never asks the backend; an
// unknown stored count fails the edit so the per-record limit holds.
func (s *Service) StageForRecord(ctx context.Context, t shared.Tenant, level Level, referenceID int64, files []File, opts StageOptions) (StageResult, error) {
	if len(files) == 0 {
		return Stage(nil, nil, opts), nil
	}
	persisted, err := s.List(ctx, t, level, referenceID)
	if err != nil {
		return StageResult{}, fmt.Errorf("count %s attachments: %w", level, err)
	}
	opts.Persisted = len(persisted)
	return Stage(nil, files, opts), nil
}

// Download streams a persisted attachment.
func (s *Service) Download(ctx context.Context, t shared.Tenant, id int64) (*backend.Download, error) {
	return s.store.DownloadAttachment(ctx, t.Token, id)
}

// Delete removes a persisted attachment immediately.
func (s *Service) Delete(ctx context.Context, t shared.Tenant, id int64) error {
	if err := s.store.DeleteAttachment(ctx, t.Token, id); err != nil {
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditFor(t, "attachment.delete", "attachment", strconv.FormatInt(id, 10), nil))
	return nil
}
