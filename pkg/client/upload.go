package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/internal/metrics"
	"github.com/docshelf/docshelf/pkg/protocol"
)

const pdfContentType = "application/pdf"

// Upload is a file ready to be sent to POST /documents/upload.
type Upload struct {
	Name        string
	ContentType string // empty when unknown; the extension is checked instead
	Size        int64
	Body        io.Reader
}

// OpenUpload builds an Upload from a local file. The content type is sniffed
// from the first 512 bytes. The returned closer releases the file.
func OpenUpload(path string) (Upload, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, nil, fmt.Errorf("open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Upload{}, nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return Upload{}, nil, fmt.Errorf("open upload: %s is a directory", path)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		f.Close()
		return Upload{}, nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	ctype := ""
	if n > 0 {
		ctype, _, _ = mime.ParseMediaType(http.DetectContentType(head))
	}

	return Upload{
		Name:        filepath.Base(path),
		ContentType: ctype,
		Size:        info.Size(),
		Body:        io.MultiReader(bytes.NewReader(head), f),
	}, f, nil
}

// ValidateUpload applies the checks made before any upload request: a file
// must be present, be a PDF, and fit under maxSize.
func ValidateUpload(u Upload, maxSize int64) *Error {
	if u.Body == nil {
		metrics.RecordUploadRejected("missing")
		return validationError("no file provided")
	}
	if !isPDF(u) {
		metrics.RecordUploadRejected("type")
		return validationError("only PDF files are allowed: %s", u.Name)
	}
	if u.Size > maxSize {
		metrics.RecordUploadRejected("size")
		return validationError("file too large: %s exceeds the %s limit", u.Name, humanMB(maxSize))
	}
	return nil
}

func isPDF(u Upload) bool {
	if u.ContentType != "" {
		return strings.EqualFold(u.ContentType, pdfContentType)
	}
	return strings.EqualFold(filepath.Ext(u.Name), ".pdf")
}

func humanMB(n int64) string {
	return fmt.Sprintf("%dMB", n/(1024*1024))
}

// UploadDocument validates and uploads a PDF, optionally into a collection.
// Invalid files are rejected without any network call.
func (c *Client) UploadDocument(ctx context.Context, u Upload, collectionID string) Result[protocol.UploadResponse] {
	if verr := ValidateUpload(u, c.maxUploadSize); verr != nil {
		return fail[protocol.UploadResponse](verr)
	}

	payload, contentType, err := encodeUpload(u, collectionID)
	if err != nil {
		metrics.RecordUpload(u.Size, false)
		return fail[protocol.UploadResponse](&Error{Kind: KindValidation, Message: "could not read file", Cause: err})
	}

	raw, err := c.exchange(ctx, http.MethodPost, "/documents/upload", contentType, payload)
	res := decode[protocol.UploadResponse](raw, err, MsgUploadNetwork, MsgUploadFailed)
	metrics.RecordUpload(u.Size, res.OK())
	if res.OK() {
		logging.Info("Document uploaded",
			zap.String("name", u.Name),
			zap.String("id", res.Data.Document.ID),
			zap.Int64("size", u.Size))
	}
	return res
}

// encodeUpload writes the multipart form: "file" and optional "collectionId".
func encodeUpload(u Upload, collectionID string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ctype := u.ContentType
	if ctype == "" {
		ctype = pdfContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, u.Name))
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, u.Body); err != nil {
		return nil, "", err
	}
	if collectionID != "" {
		if err := w.WriteField("collectionId", collectionID); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
