package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// Segment splits a document into one TextUnit per non-blank page.
// The format is chosen from the filename extension; unknown extensions are read as PDF.
// Any extraction failure yields an empty result.
func Segment(raw []byte, filename string) []models.TextUnit {
	pages, err := extractPages(raw, filename)
	if err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Failed to extract text")
		return nil
	}
	return unitsFromPages(pages, filepath.Base(filename))
}

// CountPages returns the number of pages (sheets, slides) in the document, or 0 on failure.
func CountPages(raw []byte, filename string) int {
	if formatOf(filename) == formatPDF {
		return PageCount(raw)
	}
	pages, err := extractPages(raw, filename)
	if err != nil {
		return 0
	}
	return len(pages)
}

// SegmentPDF is Segment for PDF input.
func SegmentPDF(raw []byte, source string) []models.TextUnit {
	pages, err := safeExtract(raw, extractPDFPages)
	if err != nil {
		log.Warn().Err(err).Str("file", source).Msg("Failed to extract PDF text")
		return nil
	}
	return unitsFromPages(pages, source)
}

// PageCount returns the PDF page count, or 0 when the input cannot be read.
func PageCount(raw []byte) (count int) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("PDF reader panicked while counting pages")
			count = 0
		}
	}()
	reader, err := openPDF(raw)
	if err != nil {
		return 0
	}
	return reader.NumPage()
}

type format int

const (
	formatPDF format = iota
	formatDOCX
	formatPPTX
	formatXLSX
	formatWorkbook
	formatMarkdown
	formatText
)

func formatOf(filename string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return formatDOCX
	case ".pptx":
		return formatPPTX
	case ".xlsx":
		return formatXLSX
	case ".xlsm", ".xltx", ".xltm":
		return formatWorkbook
	case ".md", ".markdown":
		return formatMarkdown
	case ".txt":
		return formatText
	default:
		return formatPDF
	}
}

func extractPages(raw []byte, filename string) ([]string, error) {
	switch formatOf(filename) {
	case formatDOCX:
		return safeExtract(raw, extractDOCXPages)
	case formatPPTX:
		return safeExtract(raw, extractPPTXPages)
	case formatXLSX:
		return safeExtract(raw, extractXLSXPages)
	case formatWorkbook:
		return safeExtract(raw, extractWorkbookPages)
	case formatMarkdown:
		return safeExtract(raw, extractMarkdownPages)
	case formatText:
		return extractTextPages(raw), nil
	default:
		return safeExtract(raw, extractPDFPages)
	}
}

// safeExtract turns a panic inside a third-party reader into an error.
func safeExtract(raw []byte, fn func([]byte) ([]string, error)) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: reader panic: %v", models.ErrExtractionFailure, r)
		}
	}()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", models.ErrExtractionFailure)
	}
	return fn(raw)
}

func unitsFromPages(pages []string, source string) []models.TextUnit {
	var units []models.TextUnit
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, models.TextUnit{
			Content:    text,
			PageIndex:  i,
			SourceName: source,
		})
	}
	log.Debug().Str("source", source).Int("pages", len(pages)).Int("units", len(units)).Msg("Segmented document")
	return units
}

func openPDF(raw []byte) (*pdf.Reader, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", models.ErrExtractionFailure)
	}
	return pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
}

func extractPDFPages(raw []byte) ([]string, error) {
	reader, err := openPDF(raw)
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// one bad page is treated as blank
			log.Warn().Err(err).Int("page", i).Msg("Skipping unreadable page")
			pageText = ""
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

func extractTextPages(raw []byte) []string {
	return strings.Split(string(raw), "\f")
}
