package workflow

import (
	"strings"
	"time"
)

// Stage is the step of the evaluation workflow the user is on.
type Stage string

const (
	StageSelectingTender  Stage = "selecting_tender"
	StageSelectingVendors Stage = "selecting_vendors"
	StageExtractingText   Stage = "extracting_text"
	StageEvaluating       Stage = "evaluating"
	StageResults          Stage = "results"
)

// OCRStatus is the extraction state of one document.
type OCRStatus string

const (
	OCRPending    OCRStatus = "pending"
	OCRProcessing OCRStatus = "processing"
	OCRCompleted  OCRStatus = "completed"
	OCRFailed     OCRStatus = "failed"
)

// TenderStatus is the lifecycle state reported for a tender.
type TenderStatus string

const (
	TenderDraft      TenderStatus = "Draft"
	TenderOpen       TenderStatus = "Open"
	TenderEvaluation TenderStatus = "Evaluation"
	TenderAwarded    TenderStatus = "Awarded"
	TenderClosed     TenderStatus = "Closed"
)

func parseTenderStatus(raw string) TenderStatus {
	for _, s := range []TenderStatus{TenderDraft, TenderOpen, TenderEvaluation, TenderAwarded, TenderClosed} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s
		}
	}
	return TenderDraft
}

type Tender struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Status          TenderStatus `json:"status"`
	Description     string       `json:"description,omitempty"`
	HasAttachments  bool         `json:"hasAttachments"`
	AttachmentCount int          `json:"attachmentCount"`
	VendorCount     int          `json:"vendorCount"`
}

type Vendor struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	TenderID          int64  `json:"tenderId"`
	DocumentCount     int    `json:"documentCount"`
	DocumentsUploaded bool   `json:"documentsUploaded"`
	OrgType           string `json:"orgType,omitempty"`
	ContactPerson     string `json:"contactPerson,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	MappingID         int64  `json:"mappingId,omitempty"`
	MappingStatus     string `json:"mappingStatus,omitempty"`
}

type Document struct {
	ID            int64     `json:"id"`
	VendorID      int64     `json:"vendorId"`
	Name          string    `json:"name"`
	ContentType   string    `json:"contentType,omitempty"`
	FileSizeBytes int64     `json:"fileSizeBytes"`
	UploadedAt    string    `json:"uploadedAt,omitempty"`
	OCRStatus     OCRStatus `json:"ocrStatus"`
	OCRText       string    `json:"ocrText,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

type Criterion struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weightage   float64 `json:"weightage"`
	MaxScore    float64 `json:"maxScore"`
	Category    string  `json:"category"`
	IsActive    bool    `json:"isActive"`
}

type CriterionScore struct {
	Score       float64 `json:"score"`
	Weightage   float64 `json:"weightage"`
	Category    string  `json:"category,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty"`
	CriterionID int64   `json:"criterionId,omitempty"`
}

// EvaluationResult is one vendor's score as returned by the evaluation backend.
type EvaluationResult struct {
	VendorID          int64                     `json:"vendorId"`
	VendorName        string                    `json:"vendorName"`
	OverallScore      float64                   `json:"overallScore"`
	Qualification     string                    `json:"qualification"`
	Rating            string                    `json:"rating,omitempty"`
	CriteriaScores    map[string]CriterionScore `json:"criteriaScores"`
	DocumentsAnalyzed int                       `json:"documentsAnalyzed"`
	AIModel           string                    `json:"aiModel,omitempty"`
	ProcessingTime    float64                   `json:"processingTime,omitempty"`
	EvaluationDate    string                    `json:"evaluationDate,omitempty"`
	DocumentQuality   float64                   `json:"documentQuality,omitempty"`
}

// OCRProgress tracks a batch run.
type OCRProgress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// ExportRecord describes the most recent export.
type ExportRecord struct {
	Format      string    `json:"format"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	StorageKey  string    `json:"storageKey,omitempty"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
	At          time.Time `json:"at"`
}

type LoadingFlags struct {
	Tenders   bool `json:"tenders"`
	Criteria  bool `json:"criteria"`
	Vendors   bool `json:"vendors"`
	Documents bool `json:"documents"`
}

// State is the full workflow state tree rendered by the presentation layer.
type State struct {
	Stage               Stage                `json:"stage"`
	Loading             LoadingFlags         `json:"loading"`
	Tenders             []Tender             `json:"tenders"`
	Criteria            []Criterion          `json:"criteria"`
	SelectedTenderID    int64                `json:"selectedTenderId,omitempty"`
	Vendors             []Vendor             `json:"vendors"`
	SelectedVendorIDs   []int64              `json:"selectedVendorIds"`
	SelectedCriteriaIDs []int64              `json:"selectedCriteriaIds"`
	Documents           map[int64][]Document `json:"documents"`
	ProcessingOCR       bool                 `json:"processingOcr"`
	Progress            OCRProgress          `json:"progress"`
	Evaluating          bool                 `json:"evaluating"`
	Results             []EvaluationResult   `json:"results"`
	EvaluationID        string               `json:"evaluationId,omitempty"`
	LastExport          *ExportRecord        `json:"lastExport,omitempty"`
}

// EvaluationInput names what to evaluate.
type EvaluationInput struct {
	TenderID    int64   `json:"tenderId"`
	VendorIDs   []int64 `json:"vendorIds"`
	CriteriaIDs []int64 `json:"criteriaIds"`
}

// BatchSummary reports the outcome of RunOCRForAllPending.
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
