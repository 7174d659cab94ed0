package tenderapi

import (
	"context"
	"fmt"
)

// ListVendorOCRResults returns the recorded OCR results for a vendor's documents.
func (c *Client) ListVendorOCRResults(ctx context.Context, vendorID int64) ([]OCRResult, error) {
	var out struct {
		VendorID       int64       `json:"vendor_id"`
		TotalDocuments int         `json:"total_documents"`
		OCRResults     []OCRResult `json:"ocr_results"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/vendors/%d/ocr-results", vendorID), &out); err != nil {
		return nil, err
	}
	return out.OCRResults, nil
}

// StartOCR asks the backend to OCR a document. A 409 means a job is already running.
func (c *Client) StartOCR(ctx context.Context, documentID int64) error {
	return c.postJSON(ctx, fmt.Sprintf("/documents/%d/ocr-process", documentID), nil, nil)
}

// OCRStatus reports the live status of a document's OCR job.
func (c *Client) OCRStatus(ctx context.Context, documentID int64) (OCRJobStatus, error) {
	var out OCRJobStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%d/ocr-status", documentID), &out); err != nil {
		return OCRJobStatus{}, err
	}
	return out, nil
}
