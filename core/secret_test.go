package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSecretNeverLeaks(t *testing.T) {
	s := NewSecret("sk-super-secret")

	for name, got := range map[string]string{
		"String":  s.String(),
		"Sprintf": fmt.Sprintf("%v", s),
		"format":  fmt.Sprintf("%#v", s),
	} {
		if strings.Contains(got, "sk-super-secret") {
			t.Errorf("%s leaked the secret: %q", name, got)
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "sk-super-secret") {
		t.Errorf("JSON leaked the secret: %s", data)
	}

	data, err = s.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if strings.Contains(string(data), "sk-super-secret") {
		t.Errorf("text leaked the secret: %s", data)
	}
}

func TestSecretExpose(t *testing.T) {
	s := NewSecret("sk-super-secret")
	if s.Expose() != "sk-super-secret" {
		t.Errorf("Expose() = %q", s.Expose())
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true for non-empty secret")
	}
	if !NewSecret("").IsEmpty() {
		t.Error("IsEmpty() = false for empty secret")
	}
}
