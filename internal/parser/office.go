package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

var (
	docxPageBreakRe = regexp.MustCompile(`<w:br\b[^>]*w:type="page"[^>]*/>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>|</w:p>|<w:tab/>`)
	slideNameRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// extractDOCXPages reads document.xml and splits it on explicit page breaks.
func extractDOCXPages(raw []byte) ([]string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var pages []string
	for _, part := range docxPageBreakRe.Split(content, -1) {
		pages = append(pages, docxPlainText(part))
	}
	return pages, nil
}

func docxPlainText(xmlContent string) string {
	var text strings.Builder
	for _, m := range docxTextRe.FindAllStringSubmatch(xmlContent, -1) {
		switch {
		case m[0] == "</w:p>":
			text.WriteString("\n")
		case m[0] == "<w:tab/>":
			text.WriteString("\t")
		default:
			text.WriteString(html.UnescapeString(m[1]))
		}
	}
	return text.String()
}

type slide struct {
	number int
	file   *zip.File
}

// extractPPTXPages treats every slide as a page, ordered by slide number.
func extractPPTXPages(raw []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}

	var slides []slide
	for _, file := range zr.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{number: n, file: file})
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	pages := make([]string, 0, len(slides))
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			pages = append(pages, "")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, extractTextFromXML(string(data)))
	}
	return pages, nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return text.String()
}

// extractXLSXPages renders each sheet as a page of tab separated rows.
func extractXLSXPages(raw []byte) ([]string, error) {
	f, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		pages = append(pages, sheetText(sheet.Name, rows))
	}
	return pages, nil
}

// extractWorkbookPages handles macro-enabled and template workbooks via excelize.
func extractWorkbookPages(raw []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make([]string, 0, len(sheets))
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, sheetText(sheetName, rows))
	}
	return pages, nil
}

// sheetText returns "" for a sheet without any non-blank cell so that it is dropped like a blank page.
func sheetText(name string, rows [][]string) string {
	var body strings.Builder
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
		if line == "" {
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if body.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("## Sheet: %s\n%s", name, body.String())
}
