package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/shared/telemetry"
)

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatalf("expected log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	return payload
}

func TestLoggingIncludesWorkflowFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(nil)

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		SetIdentity(c, Identity{UserID: "officer", Token: "tok"})
		c.Next()
	}, Logging())
	router.POST("/api/v1/workflow/documents/:id/ocr", func(c *gin.Context) {
		c.Set("tenderId", int64(7))
		c.Set("documentId", int64(100))
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflow/documents/100/ocr", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	payload := lastLogLine(t, &buf)
	for _, key := range []string{"request_id", "route", "duration_ms", "status", "bytes_out"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["route"] != "/api/v1/workflow/documents/:id/ocr" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["user_id"] != "officer" || payload["level"] != "info" {
		t.Fatalf("unexpected user/level: %v %v", payload["user_id"], payload["level"])
	}
	if payload["document_id"] != float64(100) || payload["tender_id"] != float64(7) {
		t.Fatalf("unexpected ids: %v %v", payload["document_id"], payload["tender_id"])
	}
	if _, ok := payload["vendor_id"]; ok {
		t.Fatalf("unset vendor_id should be omitted")
	}
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(nil)

	router := gin.New()
	router.Use(Logging())
	router.GET("/api/v1/workflow", func(c *gin.Context) {
		c.Set("upstreamError", "tender backend timeout")
		c.JSON(http.StatusBadGateway, gin.H{})
	})
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/workflow", nil))
	payload := lastLogLine(t, &buf)
	if payload["level"] != "error" || payload["upstream_error"] != "tender backend timeout" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("health probe logged at info level: %s", buf.String())
	}
}
