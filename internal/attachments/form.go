package attachments

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/po-console/internal/platform/httpx"
)

// FormField is the multipart field files are posted under.
const FormField = "files"

// ReadMultipart collects the files posted under field. Optional
// "lastModified" values pair with the files by position. Oversize files
// keep their size but their content is not read.
func ReadMultipart(form *multipart.Form, field string) ([]File, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	lastModified := form.Value["lastModified"]
	files := make([]File, 0, len(headers))
	for i, fh := range headers {
		f := File{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		}
		if i < len(lastModified) {
			f.LastModified, _ = strconv.ParseInt(lastModified[i], 10, 64)
		}
		if fh.Size <= MaxFileSize {
			data, err := readPart(fh)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			f.Data = data
		}
		files = append(files, f)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = src.Close()
	}()
	return io.ReadAll(io.LimitReader(src, MaxFileSize+1))
}

// MaxSubmissionBytes bounds a record submission with its files. It leaves
// room for oversize files so they can be rejected with a message instead
// of a transport error.
const MaxSubmissionBytes = 64 << 20

// PayloadField carries the record JSON of a multipart submission.
const PayloadField = "payload"

// DecodeSubmission reads a record submission into dest. JSON bodies carry
// no files; multipart bodies carry the JSON in PayloadField and the files
// under FormField.
func DecodeSubmission(w http.ResponseWriter, r *http.Request, dest any) ([]File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSubmissionBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, httpx.DecodeJSON(r, dest)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	if err := json.Unmarshal([]byte(r.FormValue(PayloadField)), dest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", httpx.ErrBadRequest, PayloadField, err)
	}
	return ReadMultipart(r.MultipartForm, FormField)
}
