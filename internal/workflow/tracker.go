package workflow

import "github.com/opensupplyhub/contribute/internal/domain"

// Claim button tooltips.
const (
	PendingReviewTooltip = "Your submission is being reviewed. You can claim this production location " +
		"once the review is complete."
	PendingReviewClaimPendingTooltip = "Your submission is being reviewed. Note that this production location " +
		"already has a pending claim."
	PendingReviewClaimedTooltip = "Your submission is being reviewed. Note that this production location " +
		"has already been claimed."
	ClaimPendingTooltip = "This production location cannot be claimed because a pending claim already exists."
	ClaimedTooltip      = "This production location has already been claimed."
	NotClaimableTooltip = "This production location is not available to claim."
)

// ClaimPath returns the claim flow route of a location.
func ClaimPath(osID domain.OSID) string {
	return "/facilities/" + EncodeURIComponent(string(osID)) + "/claim"
}

// FacilityPath returns the public profile route of a location.
func FacilityPath(osID domain.OSID) string {
	return "/facilities/" + EncodeURIComponent(string(osID))
}

// ClaimButton is the state of the tracker dialog's claim action.
type ClaimButton struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// ClaimAction decides the claim button for a submission. While moderation is pending the
// button is always disabled; after a decision only an unclaimed location can be claimed.
func ClaimAction(status domain.ModerationStatus, claim domain.ClaimStatus, osID domain.OSID) ClaimButton {
	if status == domain.ModerationPending {
		switch claim {
		case domain.ClaimStatusPending:
			return ClaimButton{Tooltip: PendingReviewClaimPendingTooltip}
		case domain.ClaimStatusClaimed:
			return ClaimButton{Tooltip: PendingReviewClaimedTooltip}
		default:
			return ClaimButton{Tooltip: PendingReviewTooltip}
		}
	}

	switch claim {
	case domain.ClaimStatusUnclaimed:
		if osID == "" {
			return ClaimButton{Tooltip: NotClaimableTooltip}
		}
		return ClaimButton{Enabled: true, Path: ClaimPath(osID)}
	case domain.ClaimStatusPending:
		return ClaimButton{Tooltip: ClaimPendingTooltip}
	case domain.ClaimStatusClaimed:
		return ClaimButton{Tooltip: ClaimedTooltip}
	default:
		return ClaimButton{Tooltip: NotClaimableTooltip}
	}
}

// BackNavigation intercepts the back action while the tracker dialog is open and sends the
// user to the landing route. It reports false when navigation should proceed normally.
func BackNavigation(dialogOpen bool) (string, bool) {
	if !dialogOpen {
		return "", false
	}
	return LandingPath, true
}

// TrackerDialog is the confirmation dialog shown after a submission.
type TrackerDialog struct {
	ModerationID string                  `json:"moderation_id"`
	Status       domain.ModerationStatus `json:"moderation_status"`
	ClaimStatus  domain.ClaimStatus      `json:"claim_status,omitempty"`
	OSID         domain.OSID             `json:"os_id,omitempty"`
	Summary      domain.ContributionData `json:"summary"`
	Claim        ClaimButton             `json:"claim"`
	NextSteps    []Link                  `json:"next_steps"`
}

// Next-step actions of the tracker dialog.
const (
	ActionClaim        ActionKind = "claim"
	ActionViewLocation ActionKind = "view-location"
)

// PresentTracker builds the dialog from the cached submission and, when available, the
// backend's current view of the event. The backend wins once it knows the event.
func PresentTracker(cached domain.Submission, event *domain.ModerationEvent, claim domain.ClaimStatus) TrackerDialog {
	d := TrackerDialog{
		ModerationID: cached.ModerationID,
		Status:       cached.Status,
		OSID:         cached.OSID,
		Summary:      cached.CleanedData,
		ClaimStatus:  claim,
	}
	if event != nil {
		d.Status = event.Status
		if event.OSID != "" {
			d.OSID = event.OSID
		}
		if event.CleanedData.Name != "" {
			d.Summary = event.CleanedData
		}
	}
	if d.Status == "" {
		d.Status = domain.ModerationPending
	}

	d.Claim = ClaimAction(d.Status, claim, d.OSID)
	d.NextSteps = []Link{{Action: ActionSearchAgain, Label: "Submit another location", Path: LandingPath}}
	if d.OSID != "" {
		d.NextSteps = append(d.NextSteps, Link{Action: ActionViewLocation, Label: "View production location", Path: FacilityPath(d.OSID)})
	}
	if d.Claim.Enabled {
		d.NextSteps = append(d.NextSteps, Link{Action: ActionClaim, Label: "Claim this production location", Path: d.Claim.Path})
	}
	return d
}
