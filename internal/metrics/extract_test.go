package metrics

import (
	"errors"
	"testing"
)

const sampleOutput = `===== RUN =====
Mesh size: 100x100x100
real 12.41
user 11.90
`

func TestExtract(t *testing.T) {
	extractor, err := NewExtractor(map[string]string{
		"runtime": `real\s+([\d\.]+)`,
		"mesh":    `Mesh size: (\S+)`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := extractor.Extract(sampleOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["runtime"] != "12.41" {
		t.Fatalf("runtime: got %q", results["runtime"])
	}
	if results["mesh"] != "100x100x100" {
		t.Fatalf("mesh: got %q", results["mesh"])
	}
}

func TestExtractAllOrNothing(t *testing.T) {
	extractor, err := NewExtractor(map[string]string{
		"runtime": `real\s+([\d\.]+)`,
		"flops":   `GFLOPs:\s+([\d\.]+)`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = extractor.Extract(sampleOutput)
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractionErr.Metric != "flops" {
		t.Fatalf("expected missing metric flops, got %q", extractionErr.Metric)
	}
}

func TestExtractWithoutCaptureGroup(t *testing.T) {
	extractor, err := NewExtractor(map[string]string{"marker": `pre-built`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := extractor.Extract("run configuration was pre-built\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results["marker"] != "pre-built" {
		t.Fatalf("got %q", results["marker"])
	}
}

func TestNewExtractorBadPattern(t *testing.T) {
	if _, err := NewExtractor(map[string]string{"bad": `(`}); err == nil {
		t.Fatalf("expected compile error")
	}
}
