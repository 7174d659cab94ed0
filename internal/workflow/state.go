package workflow

import (
	"fmt"
	"strings"

	"tender-evaluator/internal/tenderapi"
)

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// clone returns a deep copy safe to hand to renderers.
func (s State) clone() State {
	out := s
	out.Tenders = cloneSlice(s.Tenders)
	out.Criteria = cloneSlice(s.Criteria)
	out.Vendors = cloneSlice(s.Vendors)
	out.SelectedVendorIDs = cloneSlice(s.SelectedVendorIDs)
	out.SelectedCriteriaIDs = cloneSlice(s.SelectedCriteriaIDs)
	out.Documents = make(map[int64][]Document, len(s.Documents))
	for vendorID, docs := range s.Documents {
		out.Documents[vendorID] = cloneSlice(docs)
	}
	out.Results = make([]EvaluationResult, len(s.Results))
	for i, r := range s.Results {
		scores := make(map[string]CriterionScore, len(r.CriteriaScores))
		for k, v := range r.CriteriaScores {
			scores[k] = v
		}
		r.CriteriaScores = scores
		out.Results[i] = r
	}
	if s.LastExport != nil {
		rec := *s.LastExport
		out.LastExport = &rec
	}
	return out
}

func (s *State) tender(id int64) (Tender, bool) {
	for _, t := range s.Tenders {
		if t.ID == id {
			return t, true
		}
	}
	return Tender{}, false
}

func (s *State) vendor(id int64) (Vendor, bool) {
	for _, v := range s.Vendors {
		if v.ID == id {
			return v, true
		}
	}
	return Vendor{}, false
}

// document returns a pointer into the Documents map for in-place updates.
func (s *State) document(id int64) *Document {
	for vendorID := range s.Documents {
		docs := s.Documents[vendorID]
		for i := range docs {
			if docs[i].ID == id {
				return &docs[i]
			}
		}
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func activeCriteriaIDs(criteria []Criterion) []int64 {
	ids := make([]int64, 0, len(criteria))
	for _, c := range criteria {
		if c.IsActive {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// orderedSelection keeps vendor ids in vendor-list order.
func orderedSelection(vendors []Vendor, selected map[int64]bool) []int64 {
	out := make([]int64, 0, len(selected))
	for _, v := range vendors {
		if selected[v.ID] {
			out = append(out, v.ID)
		}
	}
	return out
}

func toTender(t tenderapi.Tender, vendorCount int) Tender {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = fmt.Sprintf("Tender %d", t.ID)
	}
	return Tender{
		ID:              t.ID,
		Title:           title,
		Status:          parseTenderStatus(t.Status),
		Description:     t.Description,
		HasAttachments:  t.HasAttachments,
		AttachmentCount: t.AttachmentCount,
		VendorCount:     vendorCount,
	}
}

func toVendor(tenderID int64, v tenderapi.Vendor, documentCount int) Vendor {
	name := strings.TrimSpace(v.VendorName)
	if name == "" {
		name = fmt.Sprintf("Vendor %d", v.ID)
	}
	return Vendor{
		ID:                v.ID,
		Name:              name,
		TenderID:          tenderID,
		DocumentCount:     documentCount,
		DocumentsUploaded: documentCount > 0,
		OrgType:           v.OrgType,
		ContactPerson:     v.ContactPersonName,
		Email:             v.ContactPersonEmail,
		Phone:             v.ContactPersonMobile,
		MappingID:         v.MappingID,
		MappingStatus:     v.MappingStatus,
	}
}

func toCriteria(raw []tenderapi.Criterion) []Criterion {
	out := make([]Criterion, 0, len(raw))
	for _, c := range raw {
		if !c.IsActive {
			continue
		}
		out = append(out, Criterion{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Weightage:   c.Weightage,
			MaxScore:    c.MaxScore,
			Category:    c.Category,
			IsActive:    c.IsActive,
		})
	}
	return out
}

// recordedStatus maps an OCR result row to a document status.
func recordedStatus(raw string) OCRStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "corrected":
		return OCRCompleted
	case "failed":
		return OCRFailed
	case "processing":
		return OCRProcessing
	default:
		return OCRPending
	}
}

// liveStatus maps a job status poll to a document status. Unknown values keep
// the job in flight so the poll budget decides.
func liveStatus(raw string) OCRStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "corrected":
		return OCRCompleted
	case "failed", "error":
		return OCRFailed
	case "pending", "queued":
		return OCRPending
	default:
		return OCRProcessing
	}
}

// mergeDocuments builds a vendor's document list from the server listing and
// its recorded OCR results. Work completed earlier in this session wins over a
// stale server record, and documents with a live poll loop stay processing.
func mergeDocuments(vendorID int64, docs []tenderapi.Document, results []tenderapi.OCRResult, completed map[int64]Document, inflight map[int64]struct{}) []Document {
	byID := make(map[int64]tenderapi.OCRResult, len(results))
	for _, r := range results {
		byID[r.DocumentID] = r
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		doc := Document{
			ID:            d.ID,
			VendorID:      vendorID,
			Name:          documentName(d),
			ContentType:   d.ContentType,
			FileSizeBytes: d.FileSize,
			UploadedAt:    d.UploadedAt,
			OCRStatus:     OCRPending,
		}
		if r, ok := byID[d.ID]; ok {
			doc.OCRStatus = recordedStatus(r.Status)
			if doc.OCRStatus == OCRCompleted {
				doc.OCRText = r.CorrectedText
				if strings.TrimSpace(doc.OCRText) == "" {
					doc.OCRText = r.OCRText
				}
				conf := r.Confidence
				doc.Confidence = &conf
			}
		}
		if prev, ok := completed[d.ID]; ok && doc.OCRStatus != OCRCompleted {
			doc.OCRStatus = OCRCompleted
			doc.OCRText = prev.OCRText
			doc.Confidence = prev.Confidence
		}
		if _, running := inflight[d.ID]; running && doc.OCRStatus != OCRCompleted {
			doc.OCRStatus = OCRProcessing
		}
		out = append(out, doc)
	}
	return out
}

func documentName(d tenderapi.Document) string {
	switch {
	case strings.TrimSpace(d.OriginalFilename) != "":
		return d.OriginalFilename
	case strings.TrimSpace(d.StoredFilename) != "":
		return d.StoredFilename
	default:
		return fmt.Sprintf("Document %d", d.ID)
	}
}

type docRef struct {
	DocumentID int64
	VendorID   int64
	Name       string
}

// pendingDocuments lists pending documents in selection order.
func pendingDocuments(s State) []docRef {
	var out []docRef
	for _, vendorID := range s.SelectedVendorIDs {
		for _, d := range s.Documents[vendorID] {
			if d.OCRStatus == OCRPending {
				out = append(out, docRef{DocumentID: d.ID, VendorID: vendorID, Name: d.Name})
			}
		}
	}
	return out
}

// buildEvaluationRequest returns the run payload, or ok=false when any named
// vendor's documents are not loaded or not all completed. A vendor with zero
// documents passes.
func buildEvaluationRequest(s State, in EvaluationInput) (tenderapi.EvaluationRequest, bool) {
	req := tenderapi.EvaluationRequest{
		TenderID:      in.TenderID,
		VendorIDs:     cloneSlice(in.VendorIDs),
		CriteriaIDs:   cloneSlice(in.CriteriaIDs),
		DocumentsData: make([]tenderapi.VendorDocuments, 0, len(in.VendorIDs)),
	}
	for _, vendorID := range in.VendorIDs {
		docs, loaded := s.Documents[vendorID]
		if !loaded {
			return tenderapi.EvaluationRequest{}, false
		}
		entry := tenderapi.VendorDocuments{VendorID: vendorID, Documents: make([]tenderapi.DocumentText, 0, len(docs))}
		for _, d := range docs {
			if d.OCRStatus != OCRCompleted {
				return tenderapi.EvaluationRequest{}, false
			}
			var conf float64
			if d.Confidence != nil {
				conf = *d.Confidence
			}
			entry.Documents = append(entry.Documents, tenderapi.DocumentText{
				DocumentID: d.ID,
				OCRText:    d.OCRText,
				Confidence: conf,
			})
		}
		req.DocumentsData = append(req.DocumentsData, entry)
	}
	return req, true
}

// selectionReady reports whether every selected vendor's documents are loaded
// and completed.
func selectionReady(s State) bool {
	for _, vendorID := range s.SelectedVendorIDs {
		docs, loaded := s.Documents[vendorID]
		if !loaded {
			return false
		}
		for _, d := range docs {
			if d.OCRStatus != OCRCompleted {
				return false
			}
		}
	}
	return true
}

func toResults(raw []tenderapi.VendorEvaluation) []EvaluationResult {
	out := make([]EvaluationResult, 0, len(raw))
	for _, r := range raw {
		scores := make(map[string]CriterionScore, len(r.CriteriaScores))
		for name, s := range r.CriteriaScores {
			scores[name] = CriterionScore{
				Score:       s.Score,
				Weightage:   s.Weightage,
				Category:    s.Category,
				Reasoning:   s.Reasoning,
				CriterionID: s.CriterionID,
			}
		}
		out = append(out, EvaluationResult{
			VendorID:          r.VendorID,
			VendorName:        r.VendorName,
			OverallScore:      r.OverallScore,
			Qualification:     r.QualificationStatus,
			Rating:            r.Rating,
			CriteriaScores:    scores,
			DocumentsAnalyzed: r.DocumentsAnalyzed,
			AIModel:           r.AIModelUsed,
			ProcessingTime:    r.ProcessingTime,
			EvaluationDate:    r.EvaluationDate,
			DocumentQuality:   r.DocumentQualityScore,
		})
	}
	return out
}
