package content

import (
	"os"
	"strings"

	dslipak "github.com/dslipak/pdf"
	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

const maxPDFPages = 5

// extractText dispatches on file extension. Extraction failures return an
// empty string: the saved file is kept for later viewing either way.
func extractText(path, ext string) string {
	switch ext {
	case ".pdf":
		return extractPDFText(path)
	case ".doc", ".docx":
		return extractDocxText(path)
	case ".txt":
		return extractPlainText(path)
	}
	return ""
}

// extractPDFText tries two readers in sequence: the primary handles most
// well-formed documents, the fallback copes with some cross-reference
// layouts the primary rejects. Both parsers panic on certain malformed
// files, hence the recovers.
func extractPDFText(path string) string {
	if text := pdfTextPrimary(path); text != "" {
		return text
	}
	return pdfTextFallback(path)
}

func pdfTextPrimary(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String()
}

func pdfTextFallback(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	reader, err := dslipak.Open(path)
	if err != nil {
		return ""
	}

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String()
}

func extractDocxText(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		if paragraph, ok := item.(*docx.Paragraph); ok {
			sb.WriteString(paragraph.String())
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

func extractPlainText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
