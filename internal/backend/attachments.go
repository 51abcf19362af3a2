package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// UploadAttachment stores one file against a record.
func (c *Client) UploadAttachment(ctx context.Context, token, level string, referenceID int64, file FilePart) (AttachmentMeta, error) {
	file.Field = "file"
	fields := map[string]string{
		"level":       level,
		"referenceId": strconv.FormatInt(referenceID, 10),
	}
	var out AttachmentMeta
	err := c.postMultipart(ctx, token, "/api/po-attachments/upload", fields, []FilePart{file}, &out)
	return out, err
}

// Attachments lists stored attachments of a record.
func (c *Client) Attachments(ctx context.Context, token, level string, referenceID int64) ([]AttachmentMeta, error) {
	query := url.Values{
		"level":       {level},
		"referenceId": {strconv.FormatInt(referenceID, 10)},
	}
	var out []AttachmentMeta
	if err := c.getJSON(ctx, token, "/api/po-attachments/meta/filter", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadAttachment streams a stored attachment.
func (c *Client) DownloadAttachment(ctx context.Context, token string, id int64) (*Download, error) {
	return c.download(ctx, token, http.MethodGet, idPath("/api/po-attachments/%d/download", id), nil)
}

// DeleteAttachment removes a stored attachment.
func (c *Client) DeleteAttachment(ctx context.Context, token string, id int64) error {
	return c.sendJSON(ctx, token, http.MethodDelete, idPath("/api/po-attachments/%d", id), nil, nil)
}
