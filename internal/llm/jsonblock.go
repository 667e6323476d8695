package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("empty llm response")
	ErrNoJSONObject  = errors.New("no json object found")
)

// CleanJSONBlock removes a surrounding ```json (or bare ```) code fence.
// Text without a fence is returned trimmed.
func CleanJSONBlock(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the JSON object carried by a model response,
// tolerating code fences and prose around the object.
func ExtractJSONObject(raw string) (string, error) {
	payload := CleanJSONBlock(raw)
	if payload == "" {
		return "", ErrEmptyResponse
	}
	if json.Valid([]byte(payload)) {
		return payload, nil
	}

	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSONObject
	}

	candidate := payload[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", errors.New("invalid json object")
	}
	return candidate, nil
}
