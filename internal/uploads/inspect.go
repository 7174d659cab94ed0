package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOC  = "application/msword"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypePNG  = "image/png"
	contentTypeJPEG = "image/jpeg"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds upload limit")
	ErrUnsupportedType = errors.New("file type is not supported")
	ErrCorruptPDF      = errors.New("pdf could not be parsed")
)

// FileInfo is what inspection learned about one uploaded file.
type FileInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	Pages       int    `json:"pages,omitempty"`
}

// Inspect sniffs the content type from the bytes rather than trusting the
// client, and makes sure PDFs actually parse before they reach OCR.
func Inspect(name, declared string, data []byte, maxBytes int64) (FileInfo, error) {
	info := FileInfo{Name: name, SizeBytes: int64(len(data))}
	if len(data) == 0 {
		return info, ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return info, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(name))
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}

	switch {
	case sniffed == contentTypePDF:
		pages, err := pdfPageCount(data)
		if err != nil {
			return info, err
		}
		info.ContentType = contentTypePDF
		info.Pages = pages
	case sniffed == contentTypePNG || sniffed == contentTypeJPEG:
		info.ContentType = sniffed
	case sniffed == "application/zip" && ext == ".docx":
		info.ContentType = contentTypeDOCX
	case ext == ".doc" && strings.EqualFold(strings.TrimSpace(declared), contentTypeDOC):
		info.ContentType = contentTypeDOC
	default:
		return info, fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}
	return info, nil
}

func pdfPageCount(data []byte) (pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrCorruptPDF, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptPDF, err)
	}
	n := r.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%w: no pages", ErrCorruptPDF)
	}
	return n, nil
}
