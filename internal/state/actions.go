package state

import (
	"fmt"
	"time"
)

// Op names an operation. Async operations go through Start, then Success or Failure.
type Op string

// Slice names the state subtree an operation belongs to.
type Slice string

// State slices.
const (
	SliceContribute    Slice = "contributeProductionLocation"
	SliceDashboard     Slice = "dashboardContributionRecord"
	SliceClaimFacility Slice = "claimFacility"
	SliceFilterOptions Slice = "filterOptions"
)

// Operations, grouped by the single slice each one touches.
const (
	OpFetchLocationByOSID    Op = "contribute/fetchLocationByOSID"
	OpFetchPotentialMatches  Op = "contribute/fetchPotentialMatches"
	OpSubmitProductionLoc    Op = "contribute/submitProductionLocation"
	OpFetchModerationEvent   Op = "contribute/fetchModerationEvent"
	OpResetPendingSubmission Op = "contribute/resetPendingSubmission"
	OpDismissSubmitError     Op = "contribute/dismissSubmitError"

	OpFetchQueue            Op = "dashboard/fetchQueue"
	OpSetQueueSort          Op = "dashboard/setQueueSort"
	OpFetchRecord           Op = "dashboard/fetchRecord"
	OpFetchRecordMatches    Op = "dashboard/fetchPotentialMatches"
	OpRejectEvent           Op = "dashboard/rejectEvent"
	OpCreateLocationFromRec Op = "dashboard/createLocation"
	OpConfirmMatch          Op = "dashboard/confirmPotentialMatch"

	OpFetchClaimTarget Op = "claimFacility/fetchClaimTarget"

	OpFetchFilterOptions Op = "filterOptions/fetch"
)

var opSlices = map[Op]Slice{
	OpFetchLocationByOSID:    SliceContribute,
	OpFetchPotentialMatches:  SliceContribute,
	OpSubmitProductionLoc:    SliceContribute,
	OpFetchModerationEvent:   SliceContribute,
	OpResetPendingSubmission: SliceContribute,
	OpDismissSubmitError:     SliceContribute,
	OpFetchQueue:             SliceDashboard,
	OpSetQueueSort:           SliceDashboard,
	OpFetchRecord:            SliceDashboard,
	OpFetchRecordMatches:     SliceDashboard,
	OpRejectEvent:            SliceDashboard,
	OpCreateLocationFromRec:  SliceDashboard,
	OpConfirmMatch:           SliceDashboard,
	OpFetchClaimTarget:       SliceClaimFacility,
	OpFetchFilterOptions:     SliceFilterOptions,
}

// SliceOf returns the slice an operation belongs to.
func SliceOf(op Op) (Slice, bool) {
	s, ok := opSlices[op]
	return s, ok
}

// Phase is the step of an operation an action reports.
type Phase int

// Phases. Synchronous operations only use PhaseSet.
const (
	PhaseStart Phase = iota
	PhaseSuccess
	PhaseFailure
	PhaseSet
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "set"
	}
}

// Action is one dispatched state transition.
type Action struct {
	Op      Op
	Phase   Phase
	Key     string // sub-key, e.g. the filter kind
	Payload any
	Err     *Failure
	At      time.Time
}

// Type returns the Redux-style action name, e.g. "dashboard/fetchQueue/start".
func (a Action) Type() string {
	return fmt.Sprintf("%s/%s", a.Op, a.Phase)
}

// Start builds the start action of an async operation.
func Start(op Op, key string) Action {
	return Action{Op: op, Phase: PhaseStart, Key: key, At: time.Now()}
}

// Success builds the success action of an async operation.
func Success(op Op, key string, payload any) Action {
	return Action{Op: op, Phase: PhaseSuccess, Key: key, Payload: payload, At: time.Now()}
}

// Failed builds the failure action of an async operation.
func Failed(op Op, key string, err error) Action {
	return Action{Op: op, Phase: PhaseFailure, Key: key, Err: FailureFrom(err), At: time.Now()}
}

// Set builds a synchronous action.
func Set(op Op, payload any) Action {
	return Action{Op: op, Phase: PhaseSet, Payload: payload, At: time.Now()}
}
