package workflow

import (
	"fmt"
	"slices"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/normalize"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/validation"
)

// SortColumn is a sortable column of the moderation queue.
type SortColumn string

// Queue columns.
const (
	ColumnCreatedAt    SortColumn = "created_at"
	ColumnName         SortColumn = "name"
	ColumnCountry      SortColumn = "country"
	ColumnContributor  SortColumn = "contributor"
	ColumnSource       SortColumn = "source"
	ColumnStatus       SortColumn = "moderation_status"
	ColumnDecisionDate SortColumn = "moderation_decision_date"
	ColumnUpdatedAt    SortColumn = "updated_at"
)

// SortColumns lists the queue columns in display order.
var SortColumns = []SortColumn{
	ColumnCreatedAt, ColumnName, ColumnCountry, ColumnContributor,
	ColumnSource, ColumnStatus, ColumnDecisionDate, ColumnUpdatedAt,
}

// Valid reports whether c is a sortable column.
func (c SortColumn) Valid() bool {
	return slices.Contains(SortColumns, c)
}

// BackendField returns the sort_by key the backend expects for c.
func (c SortColumn) BackendField() string {
	switch c {
	case ColumnName:
		return "cleaned_data.name"
	case ColumnCountry:
		return "cleaned_data.country.name"
	case ColumnContributor:
		return "contributor_name"
	default:
		return string(c)
	}
}

// ToggleSort applies a header click. Clicking the active column flips the direction,
// another column starts descending. Clicks are ignored while the queue is loading.
func ToggleSort(cur state.QueueSort, column SortColumn, fetching bool) (state.QueueSort, error) {
	if !column.Valid() {
		return cur, fmt.Errorf("unknown sort column %q", column)
	}
	if fetching {
		return cur, nil
	}
	if cur.Column == string(column) {
		return state.QueueSort{Column: cur.Column, Desc: !cur.Desc}, nil
	}
	return state.QueueSort{Column: string(column), Desc: true}, nil
}

// RejectTooltip explains why the reject action is disabled.
var RejectTooltip = fmt.Sprintf(
	"Please provide a justification of at least %d characters for rejecting this contribution.",
	validation.MinJustificationLength)

// RejectDialog is the staff rejection dialog. The justification is rich text.
type RejectDialog struct {
	Justification string `json:"justification"`
}

// PlainJustification returns the text content of the justification.
func (d RejectDialog) PlainJustification() string {
	return normalize.PlainText(d.Justification)
}

// MarkdownJustification returns the justification rendered as Markdown.
func (d RejectDialog) MarkdownJustification() string {
	return normalize.Markdown(d.Justification)
}

// CanReject reports whether the justification is long enough.
func (d RejectDialog) CanReject() bool {
	return validation.JustificationOK(d.Justification)
}

// Button returns the reject action state with its hover tooltip.
func (d RejectDialog) Button() SubmitButton {
	if d.CanReject() {
		return SubmitButton{Enabled: true}
	}
	return SubmitButton{Tooltip: RejectTooltip}
}

// RecordAction is one primary action on a moderation record.
type RecordAction struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// RecordActions are the primary actions of the record detail view.
type RecordActions struct {
	CreateLocation RecordAction `json:"create_location"`
	Reject         RecordAction `json:"reject"`
	GoToClaim      RecordAction `json:"go_to_claim"`
}

const (
	reasonLoading = "The moderation event is loading."
	reasonBusy    = "An action on this moderation event is in progress."
	reasonDecided = "This moderation event has already been decided."
	reasonNoOSID  = "This contribution has no production location to claim yet."
)

// PresentRecordActions decides the record actions. All three are disabled while the
// event or a mutation on it is in flight.
func PresentRecordActions(fetching, mutating bool, ev *domain.ModerationEvent) RecordActions {
	var reason string
	switch {
	case fetching || ev == nil:
		reason = reasonLoading
	case mutating:
		reason = reasonBusy
	}
	if reason != "" {
		off := RecordAction{Reason: reason}
		return RecordActions{CreateLocation: off, Reject: off, GoToClaim: off}
	}

	actions := RecordActions{
		CreateLocation: RecordAction{Enabled: true},
		Reject:         RecordAction{Enabled: true},
	}
	if ev.Status.Decided() {
		actions.CreateLocation = RecordAction{Reason: reasonDecided}
		actions.Reject = RecordAction{Reason: reasonDecided}
	}
	if ev.OSID != "" {
		actions.GoToClaim = RecordAction{Enabled: true, Path: ClaimPath(ev.OSID)}
	} else {
		actions.GoToClaim = RecordAction{Reason: reasonNoOSID}
	}
	return actions
}

// MatchItem is one potential duplicate on the record view.
type MatchItem struct {
	domain.PotentialMatch
	Band    domain.ConfidenceBand `json:"band"`
	Confirm RecordAction          `json:"confirm"`
}

// PresentMatches renders potential matches with their bands. Confirming is only offered
// on a pending, idle record.
func PresentMatches(matches []domain.PotentialMatch, actions RecordActions) []MatchItem {
	out := make([]MatchItem, 0, len(matches))
	for _, m := range matches {
		item := MatchItem{PotentialMatch: m, Band: m.Band()}
		if actions.CreateLocation.Enabled {
			item.Confirm = RecordAction{Enabled: true}
		} else {
			item.Confirm = RecordAction{Reason: actions.CreateLocation.Reason}
		}
		out = append(out, item)
	}
	return out
}
