// Package redact masks credential material before anything is logged or
// persisted. Remote panel errors can echo request payloads back, so every
// string that leaves the provisioning path goes through Mask first.
package redact

import (
	"encoding/json"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

var (
	// key=value / key: value pairs for credential-bearing keys.
	kvPattern = regexp.MustCompile(`(?i)("?(?:password|passwd|secret|token|api[_-]?key|authorization|auth)"?\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s,}&]+)`)

	// Anything shaped like a JWT.
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}`)

	// Bearer tokens in header dumps.
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._-]+`)
)

// Mask replaces credential-looking material in s with a placeholder. The
// bearer and JWT rules run first: the kv rule stops at whitespace, so on an
// Authorization header it would eat the literal word Bearer and leave the
// token itself standing.
func Mask(s string) string {
	if s == "" {
		return s
	}
	s = bearerPattern.ReplaceAllString(s, "${1}"+placeholder)
	s = jwtPattern.ReplaceAllString(s, placeholder)
	s = kvPattern.ReplaceAllString(s, "${1}"+placeholder)
	return s
}

// Error masks an error's text; nil stays empty.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Mask(err.Error())
}

// sensitive JSON keys masked by MaskJSON regardless of nesting.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
}

// MaskJSON masks sensitive fields of a JSON document. Non-JSON input falls
// back to plain Mask.
func MaskJSON(raw []byte) string {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Mask(string(raw))
	}
	masked := maskValue(doc)
	out, err := json.Marshal(masked)
	if err != nil {
		return Mask(string(raw))
	}
	return string(out)
}

func maskValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				t[k] = placeholder
				continue
			}
			t[k] = maskValue(val)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = maskValue(item)
		}
		return t
	case string:
		return Mask(t)
	default:
		return v
	}
}
