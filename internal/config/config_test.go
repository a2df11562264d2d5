package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("addr default: %q", cfg.Server.Addr)
	}
	if cfg.Storage.Bucket != DefaultBucket || cfg.Storage.Region != DefaultRegion {
		t.Fatalf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Time.DisplayZone != DefaultDisplayZone {
		t.Fatalf("display zone default: %q", cfg.Time.DisplayZone)
	}
	if cfg.Dedup.TTL != DefaultDedupTTL || cfg.Dedup.SweepSpec != DefaultSweepSpec {
		t.Fatalf("dedup defaults: %+v", cfg.Dedup)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[meta]
verify_token = "hub-secret"
whatsapp_token = "EAAG..."
phone_number_id = "1055501234"

[storage]
bucket = "custom-bucket"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr not overlaid: %q", cfg.Server.Addr)
	}
	if cfg.Meta.VerifyToken != "hub-secret" || cfg.Meta.PhoneNumberID != "1055501234" {
		t.Fatalf("meta not overlaid: %+v", cfg.Meta)
	}
	if cfg.Storage.Bucket != "custom-bucket" {
		t.Fatalf("bucket not overlaid: %q", cfg.Storage.Bucket)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Storage.Region != DefaultRegion {
		t.Fatalf("region default lost: %q", cfg.Storage.Region)
	}
	if cfg.Mongo.URI != DefaultMongoURI {
		t.Fatalf("mongo default lost: %q", cfg.Mongo.URI)
	}
}

func TestPublicBaseURL(t *testing.T) {
	t.Parallel()

	s := StorageConfig{Bucket: "imgbrain", Region: "us-east-1"}
	if got := s.PublicBaseURL(); got != "https://imgbrain.s3.us-east-1.amazonaws.com" {
		t.Fatalf("unexpected base url: %q", got)
	}
}
