package config

import (
	"fmt"
	"strings"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// NormalizeFormat canonicalizes a report format name.
func NormalizeFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = FormatTable
	}
	switch format {
	case FormatTable, FormatJSON:
		return format, nil
	case "text":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid format %q (expected %s|%s|text)", raw, FormatTable, FormatJSON)
	}
}
