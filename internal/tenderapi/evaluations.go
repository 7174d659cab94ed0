package tenderapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ListCriteria returns all evaluation criteria, active or not.
func (c *Client) ListCriteria(ctx context.Context) ([]Criterion, error) {
	var out struct {
		Criteria       []Criterion `json:"criteria"`
		Total          int         `json:"total"`
		TotalWeightage float64     `json:"total_weightage"`
	}
	if err := c.getJSON(ctx, "/evaluation-criteria", &out); err != nil {
		return nil, err
	}
	return out.Criteria, nil
}

// RunEvaluation scores the given vendors. A body reporting status "failed" is an error.
func (c *Client) RunEvaluation(ctx context.Context, req EvaluationRequest) (EvaluationResponse, error) {
	var out EvaluationResponse
	if err := c.postJSON(ctx, "/ai-evaluations/run", req, &out); err != nil {
		return EvaluationResponse{}, err
	}
	if strings.EqualFold(out.Status, "failed") {
		msg := out.Error
		if msg == "" {
			msg = "evaluation failed"
		}
		return EvaluationResponse{}, errors.New("tender api /ai-evaluations/run: " + msg)
	}
	return out, nil
}

// ExportEvaluation requests a server-rendered export of an evaluation.
func (c *Client) ExportEvaluation(ctx context.Context, evaluationID, format string) (ExportResponse, error) {
	if evaluationID == "" {
		evaluationID = "combined"
	}
	var out ExportResponse
	path := fmt.Sprintf("/ai-evaluations/%s/export", url.PathEscape(evaluationID))
	if err := c.postJSON(ctx, path, map[string]string{"format": format}, &out); err != nil {
		return ExportResponse{}, err
	}
	return out, nil
}
