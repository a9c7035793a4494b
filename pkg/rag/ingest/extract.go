package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor turns a file into plain text.
type Extractor func(path string) (string, error)

// DefaultExtractors covers the formats the knowledge base is built from.
func DefaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".pdf": ExtractPDF,
		".txt": ExtractText,
		".md":  ExtractText,
	}
}

func ExtractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}

func ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// categoryNames maps the folder codes of the conditions générales archive.
var categoryNames = map[string]string{
	"CG-Vie":         "Assurance Vie",
	"CG-Santé":       "Assurance Santé",
	"CG-Transport":   "Assurance Transport",
	"CG-IARD":        "Assurance IARD",
	"CG-Engineering": "Assurance Engineering",
	"CG-Automobile":  "Assurance Automobile",
}

// CategoryFromDir derives a category from a folder such as "1-CG-Vie": the
// leading ordinal is dropped and known codes are expanded.
func CategoryFromDir(dir string) string {
	name := filepath.Base(dir)
	code := name
	if i := strings.Index(name, "-"); i >= 0 {
		code = name[i+1:]
	}
	if full, ok := categoryNames[code]; ok {
		return full
	}
	return code
}
