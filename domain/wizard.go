package domain

import "context"

// Wizard step numbers. The flow is linear with a back transition; step 1 has
// no back edge.
const (
	StepPage          = 1
	StepAdAccount     = 2
	StepPixel         = 3
	StepSocialProfile = 4
	StepCatalog       = 5
	StepReview        = 6
)

// StateError is the serializable error surfaced on a wizard snapshot. Kind
// matches the linkerr taxonomy; Reason is stable and user-displayable.
type StateError struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// WizardState is the serializable snapshot of one user's in-progress
// selection. It is owned exclusively by the active wizard instance for the
// session; callers render it and mutate only through the wizard's named
// transitions.
type WizardState struct {
	UserID      string `json:"user_id"`
	CurrentStep int    `json:"current_step"`

	// Selected holds at most one staged id per kind. Selecting replaces any
	// previously staged id for that kind; clearing removes the entry.
	Selected map[ResourceKind]string `json:"selected"`

	Resources ResourceSet `json:"resources"`

	// SocialProfilesLoaded records that the page-scoped fetch has completed
	// for the currently selected page, so step 4 can tell "no profiles exist"
	// apart from "not fetched yet".
	SocialProfilesLoaded bool `json:"social_profiles_loaded"`

	AttemptCount          int         `json:"attempt_count"`
	RetryCountdownSeconds int         `json:"retry_countdown_seconds"`
	IsLoading             bool        `json:"is_loading"`
	LastError             *StateError `json:"last_error,omitempty"`
}

// SelectedID returns the staged id for a kind, or "" when nothing is staged.
func (s *WizardState) SelectedID(kind ResourceKind) string {
	if s.Selected == nil {
		return ""
	}
	return s.Selected[kind]
}

// ResourceCache stores discovery snapshots per user with a TTL so a dashboard
// reload inside the TTL re-renders without refetching. Implementations are
// in-memory or Redis-backed.
type ResourceCache interface {
	Get(ctx context.Context, userID string) (*ResourceSet, bool)
	Set(ctx context.Context, userID string, set *ResourceSet) error
	Invalidate(ctx context.Context, userID string) error
}
