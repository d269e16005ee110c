package model

import "time"

// Step identifies where a user is inside the multi-step dialog.
type Step string

const (
	StepMenu           Step = "menu"
	StepChoosingPlan   Step = "choosing_plan"
	StepRenewingPlan   Step = "renewing_plan"
	StepChoosingGuide  Step = "choosing_tutorial"
	StepChoosingSetup  Step = "choosing_install_option"
)

// ConversationState holds one user's progress through the dialog plus the
// transient flow data carried between steps. Keyed by phone number.
type ConversationState struct {
	Step          Step      `json:"step"`
	PendingTxID   string    `json:"pending_tx_id,omitempty"`
	SelectedPlan  string    `json:"selected_plan,omitempty"`
	PackageID     int       `json:"package_id,omitempty"`
	TutorialKey   string    `json:"tutorial_key,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatePatch is a partial update merged into the stored state. Nil fields
// leave the stored value untouched; Step "" likewise.
type StatePatch struct {
	Step         Step
	PendingTxID  *string
	SelectedPlan *string
	PackageID    *int
	TutorialKey  *string
}

// Apply merges the patch into s and stamps UpdatedAt.
func (p StatePatch) Apply(s *ConversationState, now time.Time) {
	if p.Step != "" {
		s.Step = p.Step
	}
	if p.PendingTxID != nil {
		s.PendingTxID = *p.PendingTxID
	}
	if p.SelectedPlan != nil {
		s.SelectedPlan = *p.SelectedPlan
	}
	if p.PackageID != nil {
		s.PackageID = *p.PackageID
	}
	if p.TutorialKey != nil {
		s.TutorialKey = *p.TutorialKey
	}
	s.UpdatedAt = now
}

// StrPtr is a small helper for building patches.
func StrPtr(s string) *string { return &s }

// IntPtr is a small helper for building patches.
func IntPtr(i int) *int { return &i }
