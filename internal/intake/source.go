package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

const (
	maxSourceBytes  = 20 * 1024 * 1024
	maxSourceRunes  = 24000
	minPrintableRun = 24
)

// ErrUnsupportedSource is returned for word-processor formats that have no
// text extraction path. Export them to PDF or plain text first.
var ErrUnsupportedSource = errors.New("unsupported disclosure document format")

// SourceText is the text pulled from a disclosure document and how it was
// obtained.
type SourceText struct {
	Text      string
	Method    string
	Truncated bool
}

// ReadSource loads the text of a disclosure document. PDFs go through
// pdftotext when it is installed and fall back to scraping printable runs.
// Word documents are rejected and anything else is read as UTF-8 text.
func ReadSource(ctx context.Context, path string) (SourceText, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".doc", ".docx":
		return SourceText{}, fmt.Errorf("%s: %w", ext, ErrUnsupportedSource)
	}
	info, err := os.Stat(path)
	if err != nil {
		return SourceText{}, err
	}
	if info.Size() > maxSourceBytes {
		return SourceText{}, fmt.Errorf("disclosure document too large: %d bytes", info.Size())
	}

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		blob, err := os.ReadFile(path)
		if err != nil {
			return SourceText{}, err
		}
		return truncateSource(string(blob), "text"), nil
	}

	if text, err := runPdfToText(ctx, path); err == nil && strings.TrimSpace(text) != "" {
		return truncateSource(text, "pdftotext"), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return SourceText{}, err
	}
	fallback := printableRuns(blob)
	if fallback == "" {
		return SourceText{}, errors.New("no extractable text found")
	}
	return truncateSource(fallback, "byte-fallback"), nil
}

func runPdfToText(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// printableRuns keeps runs of printable ASCII long enough to be prose.
func printableRuns(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); len(s) >= minPrintableRun {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if r < unicode.MaxASCII && (unicode.IsPrint(r) || r == '\n' || r == '\t') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(strings.Join(runs, "\n"))
}

func truncateSource(text, method string) SourceText {
	trimmed := strings.TrimSpace(text)
	r := []rune(trimmed)
	if len(r) <= maxSourceRunes {
		return SourceText{Text: trimmed, Method: method}
	}
	return SourceText{
		Text:      string(r[:maxSourceRunes]) + "\n\n[TRUNCATED]",
		Method:    method,
		Truncated: true,
	}
}

// SourceAttachment describes the document a disclosure was extracted from.
func SourceAttachment(path string) disclosure.Attachment {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		ext = "txt"
	}
	return disclosure.Attachment{
		FileName:    filepath.Base(path),
		FileType:    ext,
		FilePath:    path,
		Description: "source disclosure document",
	}
}
