package main

import (
	"strings"
	"testing"
)

func TestRunReturnsConfigError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "http")

	err := run()
	if err == nil {
		t.Fatalf("expected an invalid port to fail startup")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Fatalf("unexpected error: %v", err)
	}
}
