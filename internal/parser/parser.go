package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"document-qa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

// Exists reports whether the input file is present and is a regular
// file. Callers check this before chunking so a missing input is
// reported up front.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ParseFile reads a document and returns one Document per page. For
// formats without physical pages the nearest structural unit stands in:
// sheets for spreadsheets, slides for presentations, heading sections
// for markdown, the whole file for docx and plain text.
func ParseFile(filePath string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".ods":
		return parseODS(filePath)
	case ".md":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parsePDF(filePath string) ([]models.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	source := filepath.Base(filePath)
	numPages := reader.NumPage()
	docs := make([]models.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			// keep the page so numbering stays aligned with the file
			docs = append(docs, models.Document{Source: source, PageNumber: i})
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		docs = append(docs, models.Document{
			Source:     source,
			PageNumber: i,
			Content:    pageText,
		})
	}
	return docs, nil
}

func parseDOCX(filePath string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	paragraphs := strings.Split(doc.GetContent(), "\n")
	var text strings.Builder
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		text.WriteString(p)
		text.WriteString("\n")
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, nil
	}
	return []models.Document{{
		Source:     filepath.Base(filePath),
		PageNumber: 1, // DOCX has no page numbers
		Content:    content,
	}}, nil
}

func parsePPTX(filePath string) ([]models.Document, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(filePath)
	var docs []models.Document
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideNum++
		slideText := strings.TrimSpace(extractTextFromXML(string(data)))
		if slideText == "" {
			continue
		}
		docs = append(docs, models.Document{
			Source:     source,
			PageNumber: slideNum,
			Content:    slideText,
		})
	}
	return docs, nil
}

func parseXLSX(filePath string) ([]models.Document, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(filePath)
	var docs []models.Document
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{
			Source:     source,
			PageNumber: sheetNum + 1, // sheets stand in for pages
			Content:    strings.TrimSpace(text.String()),
		})
	}
	return docs, nil
}

func parseODS(filePath string) ([]models.Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(filePath)
	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{
			Source:     source,
			PageNumber: sheetNum + 1, // sheets stand in for pages
			Content:    strings.TrimSpace(text.String()),
		})
	}
	return docs, nil
}

// parseMarkdown walks the goldmark AST and emits one Document per
// heading-delimited section, so retrieval units follow the structure
// of the file rather than raw lines.
func parseMarkdown(filePath string) ([]models.Document, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gmtext.NewReader(src))

	source := filepath.Base(filePath)
	var docs []models.Document
	var section strings.Builder

	flush := func() {
		content := strings.TrimSpace(section.String())
		section.Reset()
		if content == "" {
			return
		}
		docs = append(docs, models.Document{
			Source:     source,
			PageNumber: len(docs) + 1,
			Content:    content,
		})
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if _, ok := node.(*ast.Heading); ok {
			flush()
		}
		section.WriteString(nodeText(node, src))
		section.WriteString("\n")
	}
	flush()

	return docs, nil
}

// nodeText collects the plain text beneath an AST node.
func nodeText(n ast.Node, src []byte) string {
	var text strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			text.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				text.WriteByte('\n')
			}
		case *ast.String:
			text.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return text.String()
}

func parseText(filePath string) ([]models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}
	return []models.Document{{
		Source:     filepath.Base(filePath),
		PageNumber: 1, // TXT has no pages
		Content:    content,
	}}, nil
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
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
