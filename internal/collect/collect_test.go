package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileReaderReadsOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join("scaling", "ref__r0__1234.out")
	if err := os.MkdirAll(filepath.Join(dir, "scaling"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, path), []byte("real 1.5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reader := FileReader{Root: dir}
	text, err := reader.ReadOutput(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "real 1.5\n" {
		t.Fatalf("got %q", text)
	}
}

func TestFileReaderMissingOutput(t *testing.T) {
	reader := FileReader{Root: t.TempDir()}
	_, err := reader.ReadOutput(context.Background(), "missing.out")
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
}

func TestObjectStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ObjectStoreConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ObjectStoreConfig) {}},
		{name: "missing endpoint", mutate: func(c *ObjectStoreConfig) { c.Endpoint = "" }, wantErr: true},
		{name: "endpoint with scheme", mutate: func(c *ObjectStoreConfig) { c.Endpoint = "http://localhost:9000" }, wantErr: true},
		{name: "missing bucket", mutate: func(c *ObjectStoreConfig) { c.Bucket = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ObjectStoreConfig{
				Endpoint:  "localhost:9000",
				AccessKey: "bench",
				SecretKey: "benchsecret",
				Region:    "us-east-1",
				Bucket:    "results",
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
