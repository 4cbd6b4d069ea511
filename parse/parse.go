package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/loomkit/loom/model"
)

// ExtractJSON returns the first plausible JSON document embedded in raw.
// It tries, in order: the whole input, a ```json fenced block, and the
// outermost {...} or [...] span. The returned string is validated with
// gjson before being accepted.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", parseErr("empty model output")
	}
	if gjson.Valid(trimmed) && startsJSON(trimmed) {
		return trimmed, nil
	}
	if fenced := fencedBlock(trimmed); fenced != "" && gjson.Valid(fenced) {
		return fenced, nil
	}
	if span := braceSpan(trimmed); span != "" && gjson.Valid(span) {
		return span, nil
	}
	return "", parseErr("no valid JSON found in model output")
}

// Decode extracts JSON from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return model.NewError(model.KindParse, "", fmt.Errorf("decode model output: %w", err))
	}
	return nil
}

// Field returns a single value from the first JSON document in raw using a
// gjson path, without decoding the whole document.
func Field(raw, path string) (gjson.Result, error) {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.Get(doc, path)
	if !res.Exists() {
		return gjson.Result{}, parseErr(fmt.Sprintf("missing field %q in model output", path))
	}
	return res, nil
}

// StringList decodes a JSON array of strings at path, tolerating non-string
// elements by coercing them.
func StringList(raw, path string) ([]string, error) {
	res, err := Field(raw, path)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, parseErr(fmt.Sprintf("field %q is not an array", path))
	}
	var out []string
	res.ForEach(func(_, v gjson.Result) bool {
		s := strings.TrimSpace(v.String())
		if s != "" {
			out = append(out, s)
		}
		return true
	})
	return out, nil
}

func startsJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// fencedBlock returns the body of the first markdown code fence, if any.
func fencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// braceSpan returns the widest {...} or [...] span in s.
func braceSpan(s string) string {
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(s[start : end+1])
		}
	}
	return ""
}

func parseErr(msg string) error {
	return model.NewError(model.KindParse, "", fmt.Errorf("%s", msg))
}
