package testdef

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultSchemaVersion is assumed for documents that omit schemaVersion.
const DefaultSchemaVersion = "v1.0.0"

// Parse validates raw against the document schema, decodes it and runs the
// structural checks. Every failure is reported as a *ValidationError.
func Parse(raw []byte) (*Test, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, &ValidationError{TestID: peekID(raw), Problems: []string{err.Error()}}
	}
	var t Test
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &ValidationError{TestID: peekID(raw), Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}
	if t.SchemaVersion == "" {
		t.SchemaVersion = DefaultSchemaVersion
	}
	if err := Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load reads and parses the test document at path.
func Load(path string) (*Test, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test %s: %w", path, err)
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", path, err)
	}
	return t, nil
}

func peekID(raw []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.ID
}
