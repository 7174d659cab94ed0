package tenderapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// ListVendorDocuments returns the documents uploaded by a vendor.
func (c *Client) ListVendorDocuments(ctx context.Context, vendorID int64) ([]Document, error) {
	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/vendors/%d/documents", vendorID), &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// UploadFile is one file forwarded to the vendor documents endpoint.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadVendorDocuments posts files as multipart field "files".
func (c *Client) UploadVendorDocuments(ctx context.Context, vendorID int64, files []UploadFile) ([]Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create multipart part: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.Data)); err != nil {
			return nil, fmt.Errorf("write multipart part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	path := fmt.Sprintf("/vendors/%d/documents", vendorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := c.do(req, path, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}
