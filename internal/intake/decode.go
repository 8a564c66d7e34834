package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown disclosure file format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

func DecodeFile(path string) (*disclosure.Disclosure, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open disclosure: %w", err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads one disclosure. Unknown fields are rejected so that typos in
// hand-written files surface instead of silently dropping content.
func Decode(r io.Reader, format Format) (*disclosure.Disclosure, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read disclosure: %w", err)
	}
	var d disclosure.Disclosure
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode json disclosure: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode yaml disclosure: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if d.Status == "" {
		d.Status = disclosure.StatusDraft
	}
	return &d, nil
}

// EncodeYAML writes d in the same shape DecodeFile accepts.
func EncodeYAML(w io.Writer, d *disclosure.Disclosure) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode yaml disclosure: %w", err)
	}
	return enc.Close()
}
