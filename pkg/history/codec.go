package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Format selects how a document is serialized.
type Format string

const (
	// FormatJSON is a bare JSON document.
	FormatJSON Format = "json"
	// FormatJS assigns the JSON document to DataVariable, for data.js files
	// loaded directly by the dashboard page.
	FormatJS Format = "js"
)

// ParseFormat validates a format name. Empty means FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJS:
		return FormatJS, nil
	default:
		return "", fmt.Errorf("unknown document format %q (use %q or %q)", s, FormatJSON, FormatJS)
	}
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	Format Format
	Indent bool
}

// Encode writes data in the requested format.
func Encode(w io.Writer, data *Data, opts EncodeOptions) error {
	if data.Entries == nil {
		data = &Data{LastUpdate: data.LastUpdate, RepoURL: data.RepoURL, Entries: map[string][]Entry{}}
	}

	var (
		body []byte
		err  error
	)

	if opts.Indent {
		body, err = json.MarshalIndent(data, "", "  ")
	} else {
		body, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	if opts.Format == FormatJS {
		if _, err := fmt.Fprintf(w, "%s = ", DataVariable); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	if opts.Format == FormatJS {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
	}

	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(data *Data, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, data, opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode reads a document in either format.
func Decode(r io.Reader) (*Data, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	return Unmarshal(raw)
}

// Unmarshal parses a document in either format.
func Unmarshal(raw []byte) (*Data, error) {
	body := stripAssignment(raw)

	var data Data
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	if data.Entries == nil {
		data.Entries = make(map[string][]Entry)
	}

	return &data, nil
}

// stripAssignment removes a leading "<global> =" and a trailing semicolon
// so that the JS form parses as JSON.
func stripAssignment(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || body[0] == '{' {
		return body
	}

	eq := bytes.IndexByte(body, '=')
	brace := bytes.IndexByte(body, '{')

	if eq < 0 || brace < 0 || eq > brace {
		return body
	}

	body = bytes.TrimSpace(body[eq+1:])
	body = bytes.TrimSuffix(body, []byte(";"))

	return bytes.TrimSpace(body)
}
