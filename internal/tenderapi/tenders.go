package tenderapi

import (
	"context"
	"fmt"
	"net/url"
)

// TenderFilter narrows the tenders-with-attachments listing.
type TenderFilter struct {
	Status         string
	TenderTypeCode string
}

// ListTendersWithAttachments returns tenders together with their attachment flags.
func (c *Client) ListTendersWithAttachments(ctx context.Context, filter TenderFilter) ([]Tender, error) {
	path := "/tenders-with-attachments"
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.TenderTypeCode != "" {
		q.Set("tender_type_code", filter.TenderTypeCode)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Tender
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTenderVendors returns the vendors mapped to a tender.
func (c *Client) ListTenderVendors(ctx context.Context, tenderID int64) ([]Vendor, error) {
	var out struct {
		Vendors []Vendor `json:"vendors"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/tenders/%d/vendors", tenderID), &out); err != nil {
		return nil, err
	}
	return out.Vendors, nil
}
