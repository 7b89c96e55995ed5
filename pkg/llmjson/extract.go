// Package llmjson pulls JSON payloads out of free-form model replies.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n?(.*?)\\s*```")

// Extract returns the JSON document embedded in a model reply. It handles
// two layers of wrapping:
// 1. a {"result":"..."} envelope around the text
// 2. markdown code fences, or prose around the first object/array
func Extract(output []byte) []byte {
	raw := output

	var envelope struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(output, &envelope); err == nil && envelope.Result != "" {
		raw = []byte(envelope.Result)
	}

	s := strings.TrimSpace(string(raw))
	if m := fence.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(s)) {
		return []byte(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []byte(s)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(s, closer); end > start {
		return []byte(s[start : end+1])
	}
	return []byte(s)
}

// Decode extracts the JSON document from output and unmarshals it into v.
func Decode(output string, v any) error {
	body := Extract([]byte(output))
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}
