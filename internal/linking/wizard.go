package linking

import (
	"context"
	"sync"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/log"
)

// Wizard owns one user's in-progress selection. All mutation goes through the
// named transitions (Select, ClearSelection, Advance, Back) or the
// package-internal setters the orchestrator uses; the state is never written
// ad hoc. A wizard belongs to exactly one session and is discarded on
// successful submission or abandonment.
type Wizard struct {
	mu        sync.Mutex
	state     domain.WizardState
	cred      *domain.Credential
	discovery *Discovery
	logger    log.Logger

	// cancel tears down the orchestrator run feeding this wizard. Set by the
	// manager; both the countdown and hard-timeout schedules hang off it.
	cancel context.CancelFunc
	closed bool
}

// NewWizard creates a wizard at step 1 with no selections.
func NewWizard(cred *domain.Credential, discovery *Discovery, logger log.Logger) *Wizard {
	return &Wizard{
		state: domain.WizardState{
			UserID:      cred.UserID,
			CurrentStep: domain.StepPage,
			Selected:    make(map[domain.ResourceKind]string),
		},
		cred:      cred,
		discovery: discovery,
		logger:    logger,
	}
}

// Snapshot returns a copy of the wizard state for rendering. The copy shares
// the immutable resource slices but not the selection map.
func (w *Wizard) Snapshot() domain.WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.state
	snap.Selected = make(map[domain.ResourceKind]string, len(w.state.Selected))
	for k, v := range w.state.Selected {
		snap.Selected[k] = v
	}
	return snap
}

// Credential returns the credential this wizard discovers against.
func (w *Wizard) Credential() *domain.Credential { return w.cred }

// Select stages the chosen id for a kind, replacing any previously staged id
// for that kind. Selecting a different page invalidates the page-scoped
// social-profile fetch and any staged profile choice.
func (w *Wizard) Select(kind domain.ResourceKind, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == "" {
		return w.validationFailure("A selection id is required.")
	}
	if kind == domain.KindSocialProfile && id == domain.SocialProfileNone {
		w.state.Selected[kind] = id
		w.state.LastError = nil
		return nil
	}
	if !w.state.Resources.Contains(kind, id) {
		return w.validationFailure("That item is not available on your account.")
	}

	if kind == domain.KindPage && w.state.Selected[kind] != id {
		w.state.SocialProfilesLoaded = false
		w.state.Resources.SocialProfiles = nil
		delete(w.state.Selected, domain.KindSocialProfile)
	}
	w.state.Selected[kind] = id
	w.state.LastError = nil
	return nil
}

// ClearSelection removes the staged id for a kind.
func (w *Wizard) ClearSelection(kind domain.ResourceKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.state.Selected, kind)
	if kind == domain.KindPage {
		w.state.SocialProfilesLoaded = false
		w.state.Resources.SocialProfiles = nil
		delete(w.state.Selected, domain.KindSocialProfile)
	}
	w.state.LastError = nil
}

// Advance moves to the next step if the current step's requirement is met.
// On a failed requirement the step is unchanged and a validation error is
// recorded on the state; the error never propagates past the caller.
// Advancing from the page step triggers the page-scoped social-profile fetch.
func (w *Wizard) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state.CurrentStep {
	case domain.StepPage:
		pageID := w.state.Selected[domain.KindPage]
		if pageID == "" {
			return w.validationFailure("Select a page before continuing.")
		}
		w.fetchSocialProfilesLocked(ctx, pageID)
	case domain.StepAdAccount:
		if w.state.Selected[domain.KindAdAccount] == "" {
			return w.validationFailure("Select an ad account before continuing.")
		}
	case domain.StepPixel:
		if w.state.Selected[domain.KindPixel] == "" {
			return w.validationFailure("Select a pixel before continuing.")
		}
	case domain.StepSocialProfile:
		// A choice is required only when the scoped fetch found profiles; an
		// explicit "none" satisfies it.
		if len(w.state.Resources.SocialProfiles) > 0 && w.state.Selected[domain.KindSocialProfile] == "" {
			return w.validationFailure("Choose a profile, or continue without one.")
		}
	case domain.StepCatalog:
		// Optional, never blocks.
	case domain.StepReview:
		return w.validationFailure("You are already on the review step.")
	}

	w.state.CurrentStep++
	w.state.LastError = nil
	return nil
}

// fetchSocialProfilesLocked runs the scoped secondary discovery for the
// chosen page. A reconnect-required failure is surfaced on the state but does
// not block progression; the profile step then behaves as if no profiles
// exist.
func (w *Wizard) fetchSocialProfilesLocked(ctx context.Context, pageID string) {
	if w.state.SocialProfilesLoaded {
		return
	}
	profiles, _, err := w.discovery.SocialProfiles(ctx, w.cred, pageID)
	w.state.Resources.SocialProfiles = profiles
	w.state.SocialProfilesLoaded = true
	if err != nil {
		w.state.LastError = stateError(err)
	}
}

// Back returns to the previous step. Always permitted except from step 1.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.CurrentStep <= domain.StepPage {
		return w.validationFailure("There is no step before this one.")
	}
	w.state.CurrentStep--
	w.state.LastError = nil
	return nil
}

func (w *Wizard) validationFailure(reason string) error {
	err := linkerr.New(linkerr.KindValidationError, reason)
	w.state.LastError = stateError(err)
	return err
}

func stateError(err error) *domain.StateError {
	return &domain.StateError{Kind: string(linkerr.KindOf(err)), Reason: linkerr.Reason(err)}
}

// ---- orchestrator-facing mutations ----
//
// These keep discovery's side effects flowing through the same single owner
// as the user-facing transitions. Once the wizard is closed they are no-ops:
// a late timer or in-flight fetch must never mutate a torn-down wizard.

func (w *Wizard) beginAttempt(attempt int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.state.IsLoading = true
	w.state.AttemptCount = attempt
	w.state.RetryCountdownSeconds = 0
	w.state.LastError = nil
}

func (w *Wizard) setCountdown(seconds int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.state.RetryCountdownSeconds = seconds
}

func (w *Wizard) applyResources(set domain.ResourceSet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	social := w.state.Resources.SocialProfiles
	w.state.Resources = set
	// The page-scoped collection is owned by the wizard's step flow, not the
	// top-level fan-out.
	w.state.Resources.SocialProfiles = social
	w.state.IsLoading = false
	w.state.RetryCountdownSeconds = 0
	w.state.LastError = nil
}

func (w *Wizard) failLoading(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.state.IsLoading = false
	w.state.RetryCountdownSeconds = 0
	w.state.LastError = stateError(err)
}

// Close tears the wizard down: cancels the discovery run with its countdown
// and hard-timeout schedules, and blocks any further state mutation.
func (w *Wizard) Close() {
	w.mu.Lock()
	cancel := w.cancel
	w.closed = true
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Wizard) setCancel(cancel context.CancelFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel = cancel
}
