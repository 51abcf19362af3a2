// Package attachments validates, stages and uploads the files attached to
// consumptions, SRNs and invoices.
package attachments

import (
	"mime"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Level tags an upload with the kind of record it belongs to.
type Level string

const (
	LevelSRN         Level = "SRN"
	LevelConsumption Level = "CONSUMPTION"
	LevelInvoice     Level = "INVOICE"
)

const (
	// MaxFiles is the attachment limit per record.
	MaxFiles = 4
	// MaxFileSize is the per file limit in bytes.
	MaxFileSize int64 = 10 << 20
)

var allowList = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"text/plain",
	"text/csv",
}

// Allowed reports whether contentType is in the allow-list.
func Allowed(contentType string) bool {
	return slices.Contains(allowList, baseType(contentType))
}

// ResolveType returns the media type used for validation. The declared type
// wins unless it is empty or generic, in which case the content is sniffed.
func ResolveType(declared string, data []byte) string {
	declared = baseType(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(data) == 0 {
		return declared
	}
	return baseType(mimetype.Detect(data).String())
}

func baseType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return strings.ToLower(mediaType)
}
