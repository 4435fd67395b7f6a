package sketch

import (
	"LogFlowSketcher/internal/config"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Extractor derives the item key of a counter from a JSON log entry.
type Extractor struct {
	keyPath string
	filters []config.FilterDef
}

// NewExtractor creates an extractor for the given gjson key path and filters.
func NewExtractor(keyPath string, filters []config.FilterDef) *Extractor {
	return &Extractor{keyPath: keyPath, filters: filters}
}

// Extract returns the item key of raw. ok is false when the key is missing or
// empty, or when a filter rejects the entry.
func (e *Extractor) Extract(raw []byte) (string, bool) {
	for _, f := range e.filters {
		v := gjson.GetBytes(raw, f.Path)
		if !v.Exists() || (v.Type != gjson.Number && v.Type != gjson.String) {
			return "", false
		}
		if v.Type == gjson.String && !isNumeric(v.Str) {
			return "", false
		}
		if !check(v.Float(), f.Value, f.Operator) {
			return "", false
		}
	}

	key := gjson.GetBytes(raw, e.keyPath)
	if !key.Exists() {
		return "", false
	}
	switch key.Type {
	case gjson.Null:
		return "", false
	case gjson.String:
		if key.Str == "" {
			return "", false
		}
		return key.Str, true
	default:
		// numbers, booleans and nested values keep their JSON text, so a
		// status code of 404 is counted as "404"
		return key.Raw, true
	}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case "!=":
		return value != threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		log.Warn().Str("operator", operator).Msg("unknown operator in rule")
		return false
	}
}
