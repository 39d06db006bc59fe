package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ingestlab/internal/ir"
)

// Format identifies a rule file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// Loaded is a built rule document together with the raw payload it came
// from. The raw payload is kept for policy scans and payload hashing.
type Loaded struct {
	Path string
	Doc  *ir.RuleDocument
	Raw  map[string]any
}

// FormatForPath picks the decoder from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported rule file extension %q (want .json, .yaml, .yml or .cue)", filepath.Ext(path))
	}
}

// LoadFile reads, decodes and builds a rule file.
func LoadFile(path string) (*Loaded, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	raw, err := Decode(data, format, path)
	if err != nil {
		return nil, err
	}
	doc, err := Build(raw)
	if err != nil {
		return nil, err
	}
	return &Loaded{Path: path, Doc: doc, Raw: raw}, nil
}

// Decode turns rule file bytes into a raw payload map.
// filename is only used for error positions.
func Decode(data []byte, format Format, filename string) (map[string]any, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	case FormatCUE:
		return decodeCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported rule format %q", format)
	}
}

// DecodeJSON decodes a JSON object, rejecting duplicate keys at any depth.
// encoding/json silently keeps the last duplicate, which would hide a
// duplicated field declaration.
func DecodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeJSONValue(dec, "")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &CompileError{Field: "json", Message: "unexpected data after top-level object"}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schemaErr(ErrMalformedDocument, "", "", "rule document must be a JSON object")
	}
	return m, nil
}

func decodeJSONValue(dec *json.Decoder, path string) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, &CompileError{Field: "json", Message: err.Error()}
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := make(map[string]any)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, &CompileError{Field: "json", Message: err.Error()}
				}
				key, _ := keyTok.(string)
				if _, dup := obj[key]; dup {
					return nil, schemaErr(ErrDuplicateName, "", strings.TrimPrefix(path+"."+key, "."), "duplicate key %q", key)
				}
				val, err := decodeJSONValue(dec, path+"."+key)
				if err != nil {
					return nil, err
				}
				obj[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, &CompileError{Field: "json", Message: err.Error()}
			}
			return obj, nil
		case '[':
			arr := []any{}
			for i := 0; dec.More(); i++ {
				val, err := decodeJSONValue(dec, fmt.Sprintf("%s[%d]", path, i))
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, &CompileError{Field: "json", Message: err.Error()}
			}
			return arr, nil
		default:
			return nil, &CompileError{Field: "json", Message: fmt.Sprintf("unexpected delimiter %v", t)}
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, &CompileError{Field: "json", Message: err.Error()}
		}
		return f, nil
	default:
		// string, bool, nil
		return t, nil
	}
}

func decodeYAML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &CompileError{Field: "yaml", Message: err.Error()}
	}
	if raw == nil {
		return nil, schemaErr(ErrMalformedDocument, "", "", "rule document is empty")
	}
	return raw, nil
}

// decodeCUE evaluates a CUE rule file. The file must be concrete: every
// value resolved, no open constraints left.
func decodeCUE(data []byte, filename string) (map[string]any, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw map[string]any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	if raw == nil {
		return nil, schemaErr(ErrMalformedDocument, "", "", "rule document is empty")
	}
	return raw, nil
}
