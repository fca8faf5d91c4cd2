package storage

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/photarium/photarium/src/common/errors"
)

// CredentialState tracks what we know about a provider's credentials.
type CredentialState string

const (
	// CredentialUnknown means no operation has proven the credentials either way
	CredentialUnknown CredentialState = "unknown"
	// CredentialValid means the last authenticated operation succeeded
	CredentialValid CredentialState = "valid"
	// CredentialInvalid means the backend rejected the credentials
	CredentialInvalid CredentialState = "invalid"
)

// renewalNoticeWindow is the minimum interval between renewal notices
// emitted for the same provider.
const renewalNoticeWindow = 60 * time.Second

// RenewalNotice asks an operator to re-authorize a provider whose
// credentials the backend rejected.
type RenewalNotice struct {
	Provider ID        `json:"provider"`
	Message  string    `json:"message"`
	IssuedAt time.Time `json:"issuedAt"`
}

// NotifyFunc delivers a renewal notice to an operator channel.
type NotifyFunc func(notice RenewalNotice)

// Lifecycle observes the outcome of provider operations, tracks per-provider
// credential state, and emits throttled renewal notices when credentials go
// bad. It never blocks the operation that reported the outcome.
type Lifecycle struct {
	notify NotifyFunc
	now    func() time.Time

	mu         sync.Mutex
	states     map[ID]CredentialState
	lastNotice map[ID]time.Time
}

// NewLifecycle creates a credential lifecycle tracker. notify may be nil,
// in which case state is still tracked but no notices are delivered.
func NewLifecycle(notify NotifyFunc) *Lifecycle {
	return &Lifecycle{
		notify:     notify,
		now:        time.Now,
		states:     make(map[ID]CredentialState),
		lastNotice: make(map[ID]time.Time),
	}
}

// State returns the tracked credential state for a provider.
func (l *Lifecycle) State(id ID) CredentialState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.states[id]; ok {
		return s
	}
	return CredentialUnknown
}

// Observe records the outcome of a provider operation. A nil error marks
// the credentials valid; an authentication error marks them invalid and
// may emit a renewal notice. Other failures leave the state alone: a
// timeout or a missing object says nothing about the credentials. Returns
// the error unchanged so it can be placed inline on a provider call path.
func (l *Lifecycle) Observe(id ID, err error) error {
	if err == nil {
		l.markValid(id)
		return nil
	}
	if apperrors.IsAuthentication(err) {
		l.markInvalid(id, err)
	}
	return err
}

func (l *Lifecycle) markValid(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[id] != CredentialValid {
		l.states[id] = CredentialValid
	}
}

func (l *Lifecycle) markInvalid(id ID, cause error) {
	l.mu.Lock()
	prev := l.states[id]
	l.states[id] = CredentialInvalid

	now := l.now()
	throttled := false
	if last, ok := l.lastNotice[id]; ok && now.Sub(last) < renewalNoticeWindow {
		throttled = true
	}
	if !throttled {
		l.lastNotice[id] = now
	}
	notify := l.notify
	l.mu.Unlock()

	if prev != CredentialInvalid {
		log.Warn("Provider credentials rejected",
			"provider", string(id), "error", cause.Error())
	}

	if throttled || notify == nil {
		return
	}
	notify(RenewalNotice{
		Provider: id,
		Message:  fmt.Sprintf("storage provider %s needs re-authorization: %s", id, cause.Error()),
		IssuedAt: now,
	})
}

// Reset returns a provider to the unknown state, used after its
// configuration is replaced.
func (l *Lifecycle) Reset(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, id)
	delete(l.lastNotice, id)
}
