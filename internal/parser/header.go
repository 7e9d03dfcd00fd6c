// Package parser holds helpers shared by the file parsers in its
// subpackages. Every parser turns one file into fully materialized
// []nest.Row values keyed by normalized column names.
package parser

import (
	"strings"

	"rownest/internal/config"
)

// HeaderNormalizer maps raw header cells to column names.
//
// Rules, in order:
//   - a leading UTF-8 BOM is removed and surrounding space trimmed;
//   - an exact header_map entry wins;
//   - otherwise the header is lower-cased and inner spaces become "_".
type HeaderNormalizer struct {
	mapping map[string]string
}

// NewHeaderNormalizer reads the "header_map" option.
func NewHeaderNormalizer(opt config.Options) HeaderNormalizer {
	return HeaderNormalizer{mapping: opt.StringMap("header_map")}
}

// Normalize returns the column name for one raw header cell.
func (h HeaderNormalizer) Normalize(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	if HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	if mapped, ok := h.mapping[s]; ok {
		return mapped
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// Rename applies only header_map, leaving unmapped keys untouched. JSON keys
// are already meaningful and are not case-folded.
func (h HeaderNormalizer) Rename(key string) string {
	if mapped, ok := h.mapping[key]; ok {
		return mapped
	}
	return key
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace. It lets
// hot loops skip strings.TrimSpace for already clean values.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
