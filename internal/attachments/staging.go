package attachments

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/po-console/internal/backend"
)

// File is a selected file that has not been uploaded yet.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	LastModified int64  `json:"lastModified"`
	Data         []byte `json:"-"`
}

// Part converts the file into a multipart part of the backend client.
func (f File) Part(field string) backend.FilePart {
	return backend.FilePart{Field: field, Name: f.Name, ContentType: f.ContentType, Data: f.Data}
}

// Rejection explains why a file was not staged.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// StageOptions tunes one staging pass.
type StageOptions struct {
	// Persisted counts attachments already stored for the record.
	Persisted int
	// Dedupe drops files matching an already staged one by name, size and
	// last-modified time.
	Dedupe bool
}

// StageResult is the outcome of adding files to a staged set.
type StageResult struct {
	Staged     []File      `json:"staged"`
	Rejected   []Rejection `json:"rejected,omitempty"`
	Duplicates []string    `json:"duplicates,omitempty"`
}

// Stage merges incoming into the already staged files. Every incoming file
// is checked for size and type; accepted files are kept until the record
// holds MaxFiles attachments.
func Stage(staged, incoming []File, opts StageOptions) StageResult {
	out := StageResult{Staged: append([]File{}, staged...)}
	for _, f := range incoming {
		if opts.Dedupe && isDuplicate(out.Staged, f) {
			out.Duplicates = append(out.Duplicates, f.Name)
			continue
		}
		if reason := check(f); reason != "" {
			out.Rejected = append(out.Rejected, Rejection{Name: f.Name, Reason: reason})
			continue
		}
		if opts.Persisted+len(out.Staged) >= MaxFiles {
			out.Rejected = append(out.Rejected, Rejection{
				Name:   f.Name,
				Reason: fmt.Sprintf("only %d attachments are allowed per record", MaxFiles),
			})
			continue
		}
		f.ContentType = ResolveType(f.ContentType, f.Data)
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		out.Staged = append(out.Staged, f)
	}
	return out
}

// Remove drops a staged file by id. Nothing is sent upstream since the file
// only exists locally.
func Remove(staged []File, id string) ([]File, bool) {
	for i, f := range staged {
		if f.ID == id {
			return append(staged[:i:i], staged[i+1:]...), true
		}
	}
	return staged, false
}

func check(f File) string {
	if f.Size > MaxFileSize {
		return fmt.Sprintf("%s exceeds the 10MB limit", f.Name)
	}
	contentType := ResolveType(f.ContentType, f.Data)
	if !Allowed(contentType) {
		if contentType == "" {
			contentType = "unknown"
		}
		return fmt.Sprintf("%s has an unsupported file type (%s)", f.Name, contentType)
	}
	return ""
}

func isDuplicate(staged []File, f File) bool {
	for _, s := range staged {
		if s.Name == f.Name && s.Size == f.Size && s.LastModified == f.LastModified {
			return true
		}
	}
	return false
}
