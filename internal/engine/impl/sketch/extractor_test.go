package sketch

import (
	"LogFlowSketcher/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	errorsOnly := []config.FilterDef{{Path: "status_code", Operator: ">=", Value: 400}}

	tests := []struct {
		name     string
		keyPath  string
		filters  []config.FilterDef
		raw      string
		wantItem string
		wantOK   bool
	}{
		{"string key", "endpoint", nil, `{"endpoint":"/api/users"}`, "/api/users", true},
		{"nested key", "request.path", nil, `{"request":{"path":"/login"}}`, "/login", true},
		{"missing key", "endpoint", nil, `{"message":"hi"}`, "", false},
		{"empty key", "endpoint", nil, `{"endpoint":""}`, "", false},
		{"null key", "endpoint", nil, `{"endpoint":null}`, "", false},
		{"numeric key keeps text", "status_code", nil, `{"status_code":404}`, "404", true},
		{"filter passes", "status_code", errorsOnly, `{"status_code":503}`, "503", true},
		{"filter boundary", "status_code", errorsOnly, `{"status_code":400}`, "400", true},
		{"filter rejects", "status_code", errorsOnly, `{"status_code":200}`, "", false},
		{"filter on numeric string", "status_code", errorsOnly, `{"status_code":"500"}`, "500", true},
		{"filter on non-numeric string", "status_code", errorsOnly, `{"status_code":"oops"}`, "", false},
		{"filter field missing", "endpoint", errorsOnly, `{"endpoint":"/a"}`, "", false},
		{"invalid json", "endpoint", nil, `not json`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := NewExtractor(tt.keyPath, tt.filters).Extract([]byte(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantItem, item)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.True(t, check(5, 3, ">"))
	assert.False(t, check(3, 3, ">"))
	assert.True(t, check(3, 3, ">="))
	assert.True(t, check(2, 3, "<"))
	assert.True(t, check(3, 3, "<="))
	assert.True(t, check(3, 3, "="))
	assert.True(t, check(4, 3, "!="))
	assert.False(t, check(4, 3, "~"))
}
