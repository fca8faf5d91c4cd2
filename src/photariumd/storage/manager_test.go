package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// memorySource is an in-memory ConfigSource for tests.
type memorySource struct {
	records map[ID]*Record
}

func newMemorySource() *memorySource {
	return &memorySource{records: make(map[ID]*Record)}
}

func (s *memorySource) set(id ID, enabled bool, payload string, updatedAt time.Time) {
	s.records[id] = &Record{
		ProviderID: id,
		Enabled:    enabled,
		Config:     json.RawMessage(payload),
		UpdatedAt:  updatedAt,
	}
}

func (s *memorySource) GetProviderConfig(id ID) (*Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, apperrors.ErrProviderNotFound
	}
	return rec, nil
}

func (s *memorySource) ListProviderConfigs() ([]*Record, error) {
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func localPayload(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf(`{"basePath":%q}`, t.TempDir())
}

func TestManagerBuildsAndCaches(t *testing.T) {
	source := newMemorySource()
	source.set(Local, true, localPayload(t), time.Now())
	m := NewManager(source, nil)

	first, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}
	second, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("second Provider call failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached instance on the second call")
	}
}

func TestManagerRebuildsOnConfigChange(t *testing.T) {
	source := newMemorySource()
	base := time.Now()
	source.set(Local, true, localPayload(t), base)
	m := NewManager(source, nil)

	first, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}

	source.set(Local, true, localPayload(t), base.Add(time.Second))
	second, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("Provider after update failed: %v", err)
	}
	if first == second {
		t.Error("updated configuration should force a rebuild")
	}
}

func TestManagerInvalidate(t *testing.T) {
	source := newMemorySource()
	source.set(Local, true, localPayload(t), time.Now())
	m := NewManager(source, nil)

	first, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}

	m.Invalidate(Local)
	second, err := m.Provider(Local)
	if err != nil {
		t.Fatalf("Provider after invalidate failed: %v", err)
	}
	if first == second {
		t.Error("invalidate should drop the cached instance")
	}
}

func TestManagerRefusesDisabledProvider(t *testing.T) {
	source := newMemorySource()
	source.set(Local, false, localPayload(t), time.Now())
	m := NewManager(source, nil)

	if _, err := m.Provider(Local); !errors.Is(err, apperrors.ErrProviderDisabled) {
		t.Errorf("expected provider-disabled error, got %v", err)
	}
}

func TestManagerUnknownProvider(t *testing.T) {
	m := NewManager(newMemorySource(), nil)
	if _, err := m.Provider(S3Main); !errors.Is(err, apperrors.ErrProviderNotFound) {
		t.Errorf("expected provider-not-found error, got %v", err)
	}
}

func TestManagerUploadDownloadRoundTrip(t *testing.T) {
	source := newMemorySource()
	source.set(Local, true, localPayload(t), time.Now())
	m := NewManager(source, nil)
	ctx := context.Background()

	content := []byte("photo bytes")
	ref, err := m.UploadBuffer(ctx, Local, "albums/x.jpg", content, "image/jpeg")
	if err != nil {
		t.Fatalf("UploadBuffer failed: %v", err)
	}
	if ref.Provider != Local {
		t.Errorf("wrong provider on ref: %s", ref.Provider)
	}

	data, info, err := m.GetFileBuffer(ctx, Local, "albums/x.jpg")
	if err != nil {
		t.Fatalf("GetFileBuffer failed: %v", err)
	}
	if string(data) != string(content) {
		t.Error("content mismatch after round trip")
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}

	// Successful operations prove the credentials
	if s := m.Lifecycle().State(Local); s != CredentialValid {
		t.Errorf("expected valid credentials after round trip, got %s", s)
	}

	if err := m.DeleteFile(ctx, Local, "albums/x.jpg"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
}

func TestManagerStatuses(t *testing.T) {
	source := newMemorySource()
	source.set(Local, true, localPayload(t), time.Now())
	source.set(S3Main, false, `{"accessKeyId":"ak","secretAccessKey":"sk","bucket":"b"}`, time.Now())
	m := NewManager(source, nil)

	statuses, err := m.Statuses()
	if err != nil {
		t.Fatalf("Statuses failed: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	byID := make(map[ID]Status)
	for _, s := range statuses {
		byID[s.Provider] = s
	}
	if !byID[Local].Enabled || byID[Local].Location == "" {
		t.Errorf("local status incomplete: %+v", byID[Local])
	}
	if byID[S3Main].Enabled {
		t.Error("s3main should report disabled")
	}
	if byID[S3Main].Credentials != CredentialUnknown {
		t.Errorf("untested provider should be unknown, got %s", byID[S3Main].Credentials)
	}
}
