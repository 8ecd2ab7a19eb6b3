package linking

import (
	"context"
	"sync"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/metrics"
	"go.pilab.hu/adlink/log"
)

// Manager owns the live wizard per user. Exactly one wizard instance exists
// per user session; mounting again tears down the previous instance so no two
// owners can mutate the same state.
type Manager struct {
	mu      sync.Mutex
	wizards map[string]*Wizard

	creds        domain.CredentialRepository
	discovery    *Discovery
	orchestrator *Orchestrator
	cache        domain.ResourceCache
	logger       log.Logger
}

// NewManager creates a Manager.
func NewManager(
	creds domain.CredentialRepository,
	discovery *Discovery,
	orchestrator *Orchestrator,
	cache domain.ResourceCache,
	logger log.Logger,
) *Manager {
	return &Manager{
		wizards:      make(map[string]*Wizard),
		creds:        creds,
		discovery:    discovery,
		orchestrator: orchestrator,
		cache:        cache,
		logger:       logger,
	}
}

// Mount creates the wizard for a user and starts discovery in the
// background. Discovery always runs against the freshly read credential: the
// exchanger's write has completed (or failed) before any caller can reach
// this point.
func (m *Manager) Mount(ctx context.Context, userID string) (*Wizard, error) {
	cred, err := m.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, linkerr.ErrReconnectRequired
	}

	m.mu.Lock()
	if old, ok := m.wizards[userID]; ok {
		old.Close()
		metrics.WizardDiscarded()
	}
	w := NewWizard(cred, m.discovery, m.logger)
	m.wizards[userID] = w
	m.mu.Unlock()
	metrics.WizardMounted()

	m.startDiscovery(w)
	return w, nil
}

// startDiscovery launches one orchestrator run for the wizard on its own
// goroutine, detached from the mounting request's context so a completed
// HTTP request does not cancel discovery mid-flight.
func (m *Manager) startDiscovery(w *Wizard) {
	runCtx, cancel := context.WithCancel(context.Background())
	w.setCancel(cancel)
	w.beginAttempt(1)
	go func() {
		defer cancel()
		m.orchestrator.Run(runCtx, w)
	}()
}

// Get returns the live wizard for a user, or nil when none is mounted.
func (m *Manager) Get(userID string) *Wizard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wizards[userID]
}

// Retry handles the manual "retry connection" affordance: it cancels any
// in-flight run, drops the cached snapshot, and starts discovery over.
func (m *Manager) Retry(ctx context.Context, userID string) (*Wizard, error) {
	m.mu.Lock()
	w := m.wizards[userID]
	m.mu.Unlock()
	if w == nil {
		return m.Mount(ctx, userID)
	}

	w.mu.Lock()
	if cancel := w.cancel; cancel != nil {
		w.mu.Unlock()
		cancel()
	} else {
		w.mu.Unlock()
	}

	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, userID); err != nil {
			m.logger.Warn(ctx, "resource cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	m.startDiscovery(w)
	return w, nil
}

// Discard tears down and forgets the wizard, cancelling its pending timers
// and in-flight fetches. Used on abandonment and after successful submission.
func (m *Manager) Discard(userID string) {
	m.mu.Lock()
	w := m.wizards[userID]
	delete(m.wizards, userID)
	m.mu.Unlock()
	if w != nil {
		w.Close()
		metrics.WizardDiscarded()
	}
}
