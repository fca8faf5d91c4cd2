package storage

import (
	"testing"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

func TestLifecycleStartsUnknown(t *testing.T) {
	l := NewLifecycle(nil)
	if s := l.State(S3Main); s != CredentialUnknown {
		t.Errorf("expected unknown, got %s", s)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	l := NewLifecycle(nil)

	l.Observe(S3Main, nil)
	if s := l.State(S3Main); s != CredentialValid {
		t.Errorf("after success: expected valid, got %s", s)
	}

	l.Observe(S3Main, apperrors.ErrStorageAuthentication)
	if s := l.State(S3Main); s != CredentialInvalid {
		t.Errorf("after auth failure: expected invalid, got %s", s)
	}

	// A later success recovers the provider without intervention
	l.Observe(S3Main, nil)
	if s := l.State(S3Main); s != CredentialValid {
		t.Errorf("after recovery: expected valid, got %s", s)
	}
}

func TestLifecycleNonAuthErrorsLeaveStateAlone(t *testing.T) {
	l := NewLifecycle(nil)

	// Timeouts and missing objects say nothing about the credentials
	nonAuth := []error{
		apperrors.ErrStorageNotFound,
		apperrors.ErrStorageAccessDenied,
		apperrors.ErrStorageTransient,
	}
	for _, err := range nonAuth {
		l.Observe(Drive, err)
		if s := l.State(Drive); s != CredentialUnknown {
			t.Errorf("after %v: expected unknown, got %s", err, s)
		}
	}

	// Nor do they recover a provider whose credentials were rejected
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	for _, err := range nonAuth {
		l.Observe(Drive, err)
		if s := l.State(Drive); s != CredentialInvalid {
			t.Errorf("after %v: expected invalid, got %s", err, s)
		}
	}
}

func TestLifecycleObserveReturnsErrorUnchanged(t *testing.T) {
	l := NewLifecycle(nil)
	in := apperrors.ErrStorageAuthentication.WithMessage("rejected")
	if out := l.Observe(S3Cold, in); out != in {
		t.Errorf("Observe altered the error: %v", out)
	}
}

func TestLifecycleNoticeThrottle(t *testing.T) {
	var notices []RenewalNotice
	l := NewLifecycle(func(n RenewalNotice) {
		notices = append(notices, n)
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	// First failure notifies
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(notices))
	}
	if notices[0].Provider != Drive {
		t.Errorf("notice names wrong provider: %s", notices[0].Provider)
	}

	// Failures inside the window stay silent
	now = now.Add(30 * time.Second)
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	now = now.Add(29 * time.Second)
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	if len(notices) != 1 {
		t.Fatalf("throttle broken: %d notices inside window", len(notices))
	}

	// Past the window a failure notifies again
	now = now.Add(2 * time.Second)
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	if len(notices) != 2 {
		t.Fatalf("expected 2 notices after window elapsed, got %d", len(notices))
	}
}

func TestLifecycleThrottleIsPerProvider(t *testing.T) {
	var notices []RenewalNotice
	l := NewLifecycle(func(n RenewalNotice) {
		notices = append(notices, n)
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	l.Observe(S3Main, apperrors.ErrStorageAuthentication)
	if len(notices) != 2 {
		t.Fatalf("expected one notice per provider, got %d", len(notices))
	}
}

func TestLifecycleReset(t *testing.T) {
	var notices []RenewalNotice
	l := NewLifecycle(func(n RenewalNotice) {
		notices = append(notices, n)
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	l.Reset(Drive)

	if s := l.State(Drive); s != CredentialUnknown {
		t.Errorf("expected unknown after reset, got %s", s)
	}

	// Reset also clears the notice window so a fresh failure notifies
	l.Observe(Drive, apperrors.ErrStorageAuthentication)
	if len(notices) != 2 {
		t.Errorf("expected fresh notice after reset, got %d", len(notices))
	}
}
