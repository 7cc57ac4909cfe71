package apitest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"testpilot/internal/types"
)

// Validate judges a response. Every criterion that spec does not request
// passes.
func Validate(spec *types.APISpec, status int, raw []byte, body any) types.Validations {
	v := types.Validations{StatusCode: true, ResponseContains: true, RequiredFields: true, SchemaMatch: true}
	if spec.ExpectedStatus != nil {
		v.StatusCode = status == *spec.ExpectedStatus
	}
	exp := spec.ExpectedResponse
	if exp == nil {
		return v
	}
	if len(exp.Contains) > 0 {
		text := Stringify(raw, body)
		for _, want := range exp.Contains {
			if !strings.Contains(text, want) {
				v.ResponseContains = false
				break
			}
		}
	}
	for _, path := range exp.Fields {
		if _, ok := Resolve(body, path); !ok {
			v.RequiredFields = false
			break
		}
	}
	obj, _ := body.(map[string]any)
	for key, want := range exp.Schema {
		// Schema keys name top-level properties; dots are part of the key.
		got, ok := obj[key]
		if !ok || !typeMatches(got, want) {
			v.SchemaMatch = false
			break
		}
	}
	return v
}

// Stringify renders the body the way a JSON serializer would: JSON bodies in
// compact form, text bodies as a quoted JSON string.
func Stringify(raw []byte, body any) string {
	if _, isText := body.(string); !isText {
		var buf bytes.Buffer
		if err := json.Compact(&buf, bytes.TrimSpace(raw)); err == nil {
			return buf.String()
		}
	}
	out, err := marshal(body)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// Resolve walks a dot path. An array body is checked through its first
// element and numeric segments index arrays.
func Resolve(body any, path string) (any, bool) {
	cur := body
	if arr, ok := cur.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		cur = arr[0]
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// TypeOf mirrors JavaScript's typeof for decoded JSON values.
func TypeOf(v any) string {
	switch v.(type) {
	case nil, map[string]any, []any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	}
	return "undefined"
}

func typeMatches(v any, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	switch want {
	case "any":
		return true
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return TypeOf(v) == want
}
