package tenderapi

// Tender is one row of the tenders-with-attachments listing.
type Tender struct {
	ID              int64  `json:"id"`
	Title           string `json:"tender"`
	Status          string `json:"status"`
	HasAttachments  bool   `json:"has_attachments"`
	AttachmentCount int    `json:"attachment_count"`
	Description     string `json:"description"`
}

// Vendor is a vendor mapped to a tender.
type Vendor struct {
	ID                  int64  `json:"id"`
	VendorName          string `json:"vendor_name"`
	OrgType             string `json:"org_type"`
	ContactPersonName   string `json:"contact_person_name"`
	ContactPersonEmail  string `json:"contact_person_email"`
	ContactPersonMobile string `json:"contact_person_mobile"`
	MappingID           int64  `json:"mapping_id"`
	MappingStatus       string `json:"mapping_status"`
	MappedDate          string `json:"mapped_date"`
}

// Document is an uploaded vendor document.
type Document struct {
	ID               int64  `json:"id"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	StoredFilename   string `json:"stored_filename"`
	FileSize         int64  `json:"file_size"`
	UploadedAt       string `json:"uploaded_at"`
}

// OCRResult is the recorded OCR outcome for one document.
type OCRResult struct {
	DocumentID    int64   `json:"document_id"`
	Status        string  `json:"status"`
	OCRText       string  `json:"ocr_text"`
	CorrectedText string  `json:"corrected_text"`
	Confidence    float64 `json:"confidence"`
}

// OCRJobStatus is the live status of an OCR job.
type OCRJobStatus struct {
	DocumentID   int64   `json:"document_id"`
	Status       string  `json:"status"`
	OCRText      string  `json:"ocr_text"`
	Confidence   float64 `json:"confidence"`
	ErrorMessage string  `json:"error_message"`
}

// Criterion is an evaluation criterion definition.
type Criterion struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weightage   float64 `json:"weightage"`
	MaxScore    float64 `json:"max_score"`
	Category    string  `json:"category"`
	IsActive    bool    `json:"is_active"`
}

// EvaluationRequest is the body of POST /ai-evaluations/run.
type EvaluationRequest struct {
	TenderID      int64             `json:"tender_id"`
	VendorIDs     []int64           `json:"vendor_ids"`
	CriteriaIDs   []int64           `json:"criteria_ids"`
	DocumentsData []VendorDocuments `json:"documents_data"`
}

// VendorDocuments carries one vendor's OCR output.
type VendorDocuments struct {
	VendorID  int64          `json:"vendor_id"`
	Documents []DocumentText `json:"documents"`
}

// DocumentText is the OCR text of one document.
type DocumentText struct {
	DocumentID int64   `json:"document_id"`
	OCRText    string  `json:"ocr_text"`
	Confidence float64 `json:"confidence"`
}

// CriterionScore is the per-criterion breakdown returned by an evaluation.
type CriterionScore struct {
	Score       float64 `json:"score"`
	Weightage   float64 `json:"weightage"`
	Category    string  `json:"category"`
	Reasoning   string  `json:"reasoning"`
	CriterionID int64   `json:"criterion_id"`
}

// VendorEvaluation is one vendor's evaluation result.
type VendorEvaluation struct {
	VendorID             int64                     `json:"vendor_id"`
	VendorName           string                    `json:"vendor_name"`
	OverallScore         float64                   `json:"overall_score"`
	QualificationStatus  string                    `json:"qualification_status"`
	Rating               string                    `json:"rating"`
	CriteriaScores       map[string]CriterionScore `json:"criteria_scores"`
	DocumentsAnalyzed    int                       `json:"documents_analyzed"`
	AIModelUsed          string                    `json:"ai_model_used"`
	ProcessingTime       float64                   `json:"processing_time"`
	EvaluationDate       string                    `json:"evaluation_date"`
	DocumentQualityScore float64                   `json:"document_quality_score"`
	Error                string                    `json:"error,omitempty"`
}

// FailedVendor is a vendor the backend could not evaluate.
type FailedVendor struct {
	VendorID   int64  `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	Error      string `json:"error"`
}

// EvaluationResponse is the result of an evaluation run.
type EvaluationResponse struct {
	EvaluationID  string             `json:"evaluation_id"`
	Status        string             `json:"status"`
	Error         string             `json:"error,omitempty"`
	Results       []VendorEvaluation `json:"results"`
	FailedVendors []FailedVendor     `json:"failed_vendors"`
}

// ExportResponse is the result of an export request.
type ExportResponse struct {
	DownloadURL string `json:"download_url"`
	ExportID    string `json:"export_id,omitempty"`
}

// LoginResponse is the result of a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        map[string]any `json:"user"`
}
