package storage

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

func record(id ID, payload string) *Record {
	return &Record{
		ProviderID: id,
		Enabled:    true,
		Config:     json.RawMessage(payload),
	}
}

func TestDecodeLocalConfig(t *testing.T) {
	cfg, err := record(Local, `{"basePath":"/srv/photos"}`).Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.Local == nil || cfg.Local.BasePath != "/srv/photos" {
		t.Errorf("unexpected local config: %+v", cfg.Local)
	}
	if cfg.Drive != nil || cfg.Object != nil {
		t.Error("decode filled the wrong config variant")
	}
}

func TestDecodeDriveConfig(t *testing.T) {
	cfg, err := record(Drive, `{"clientId":"id","clientSecret":"sec","refreshToken":"rt","storageMode":"nested"}`).Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.Drive.StorageMode != DriveNested {
		t.Errorf("expected nested mode, got %s", cfg.Drive.StorageMode)
	}
}

func TestDecodeDriveConfigDefaultsFlat(t *testing.T) {
	cfg, err := record(Drive, `{"clientId":"id","clientSecret":"sec"}`).Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.Drive.StorageMode != DriveFlat {
		t.Errorf("expected flat default, got %s", cfg.Drive.StorageMode)
	}
}

func TestDecodeObjectStoreConfig(t *testing.T) {
	for _, id := range []ID{S3Main, S3Cold} {
		cfg, err := record(id, `{"accessKeyId":"ak","secretAccessKey":"sk","bucket":"photos"}`).Decode()
		if err != nil {
			t.Fatalf("Decode for %s failed: %v", id, err)
		}
		if cfg.Object.Region != "us-east-1" {
			t.Errorf("%s: expected default region, got %s", id, cfg.Object.Region)
		}
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name   string
		record *Record
	}{
		{"unknown provider", record(ID("tape"), `{}`)},
		{"empty payload", &Record{ProviderID: Local}},
		{"malformed json", record(Local, `{`)},
		{"missing base path", record(Local, `{}`)},
		{"missing drive client", record(Drive, `{"clientSecret":"sec"}`)},
		{"bad storage mode", record(Drive, `{"clientId":"id","clientSecret":"sec","storageMode":"spiral"}`)},
		{"missing bucket", record(S3Main, `{"accessKeyId":"ak","secretAccessKey":"sk"}`)},
		{"missing keys", record(S3Cold, `{"bucket":"photos"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.record.Decode(); !errors.Is(err, apperrors.ErrInvalidProviderConfig) {
				t.Errorf("expected invalid-config error, got %v", err)
			}
		})
	}
}

func TestSecretFields(t *testing.T) {
	if fields := SecretFields(Local); len(fields) != 0 {
		t.Errorf("local provider should carry no secrets, got %v", fields)
	}
	if fields := SecretFields(Drive); len(fields) != 2 {
		t.Errorf("expected 2 drive secret fields, got %v", fields)
	}
	for _, id := range []ID{S3Main, S3Cold} {
		fields := SecretFields(id)
		if len(fields) != 1 || fields[0] != "secretAccessKey" {
			t.Errorf("%s: unexpected secret fields %v", id, fields)
		}
	}
}
