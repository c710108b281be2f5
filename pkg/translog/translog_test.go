package translog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecisionWritesBothLogs(t *testing.T) {
	dir := t.TempDir()
	runPath := filepath.Join(dir, "run.log")
	aggPath := filepath.Join(dir, "aggregate.log")

	log, err := Open(runPath, aggPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	log.Decision("f [/a.py]", "MEMOIZED", "wrote new entry")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	runBytes, err := os.ReadFile(runPath)
	if err != nil {
		t.Fatalf("failed to read run log: %v", err)
	}
	if !strings.Contains(string(runBytes), "MEMOIZED") {
		t.Fatalf("expected run log to contain decision, got %q", runBytes)
	}

	aggBytes, err := os.ReadFile(aggPath)
	if err != nil {
		t.Fatalf("failed to read aggregate log: %v", err)
	}
	if !strings.Contains(string(aggBytes), "f [/a.py]") {
		t.Fatalf("expected aggregate log to contain canonical name, got %q", aggBytes)
	}
}

func TestAggregateLogAppendsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	runPath := filepath.Join(dir, "run.log")
	aggPath := filepath.Join(dir, "aggregate.log")

	log1, err := Open(runPath, aggPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	log1.Decision("f [/a.py]", "MEMOIZED", "first run")
	log1.Close()

	log2, err := Open(runPath, aggPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	log2.Decision("f [/a.py]", "SKIPPED", "second run")
	log2.Close()

	aggBytes, err := os.ReadFile(aggPath)
	if err != nil {
		t.Fatalf("failed to read aggregate log: %v", err)
	}
	content := string(aggBytes)
	if !strings.Contains(content, "first run") || !strings.Contains(content, "second run") {
		t.Fatalf("expected both runs to appear in the aggregate log, got %q", content)
	}

	runBytes, err := os.ReadFile(runPath)
	if err != nil {
		t.Fatalf("failed to read run log: %v", err)
	}
	if strings.Contains(string(runBytes), "first run") {
		t.Fatalf("expected run log to be truncated on reopen, got %q", runBytes)
	}
}
