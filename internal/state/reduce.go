package state

import (
	"maps"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// Reduce returns the state that results from applying a to s. It never mutates s:
// slices are values and the only maps are copied before they are written.
// Unknown operations and payloads of the wrong type leave the state unchanged.
func Reduce(s State, a Action) State {
	slice, ok := SliceOf(a.Op)
	if !ok {
		return s
	}
	switch slice {
	case SliceContribute:
		s.ContributeProductionLocation = reduceContribute(s.ContributeProductionLocation, a)
	case SliceDashboard:
		s.DashboardContributionRecord = reduceDashboard(s.DashboardContributionRecord, a)
	case SliceClaimFacility:
		s.ClaimFacility = reduceClaim(s.ClaimFacility, a)
	case SliceFilterOptions:
		s.FilterOptions = reduceFilterOptions(s.FilterOptions, a)
	}
	return s
}

// step applies the start/success/failure discipline shared by every async field.
func step[T any](cur Async[T], a Action) Async[T] {
	switch a.Phase {
	case PhaseStart:
		return cur.start()
	case PhaseSuccess:
		data, ok := a.Payload.(T)
		if !ok {
			return cur
		}
		return cur.succeed(data)
	case PhaseFailure:
		return cur.fail(a.Err)
	default:
		return cur
	}
}

func reduceContribute(s ContributeProductionLocation, a Action) ContributeProductionLocation {
	switch a.Op {
	case OpFetchLocationByOSID:
		if a.Phase == PhaseStart {
			s.SingleProductionLocation = Async[*domain.ProductionLocation]{Fetching: true}
			return s
		}
		s.SingleProductionLocation = step(s.SingleProductionLocation, a)
	case OpFetchPotentialMatches:
		if a.Phase == PhaseStart {
			s.ProductionLocations = Async[[]domain.Candidate]{Fetching: true}
			return s
		}
		s.ProductionLocations = step(s.ProductionLocations, a)
	case OpSubmitProductionLoc:
		s.PendingModerationEvent = step(s.PendingModerationEvent, a)
	case OpFetchModerationEvent:
		s.SingleModerationEvent = step(s.SingleModerationEvent, a)
	case OpResetPendingSubmission:
		s.PendingModerationEvent = Async[*domain.ModerationEvent]{}
	case OpDismissSubmitError:
		s.PendingModerationEvent.Error = nil
	}
	return s
}

func reduceDashboard(s DashboardContributionRecord, a Action) DashboardContributionRecord {
	switch a.Op {
	case OpFetchQueue:
		s.Queue = step(s.Queue, a)
	case OpSetQueueSort:
		if sort, ok := a.Payload.(QueueSort); ok && !s.Queue.Fetching {
			s.Sort = sort
		}
	case OpFetchRecord:
		if a.Phase == PhaseStart {
			s.Event = Async[*domain.ModerationEvent]{Fetching: true}
			s.Mutation = Async[*MutationResult]{}
			return s
		}
		s.Event = step(s.Event, a)
	case OpFetchRecordMatches:
		s.PotentialMatches = step(s.PotentialMatches, a)
	case OpRejectEvent, OpCreateLocationFromRec, OpConfirmMatch:
		s.Mutation = step(s.Mutation, a)
		if a.Phase == PhaseSuccess {
			s.Event = applyMutation(s.Event, s.Mutation.Data)
		}
	}
	return s
}

// applyMutation mirrors a successful staff action onto the open record.
func applyMutation(ev Async[*domain.ModerationEvent], m *MutationResult) Async[*domain.ModerationEvent] {
	if m == nil || ev.Data == nil || ev.Data.ModerationID.String() != m.ModerationID {
		return ev
	}
	updated := *ev.Data
	if m.Status != "" {
		updated.Status = m.Status
	}
	if m.OSID != "" {
		updated.OSID = m.OSID
	}
	ev.Data = &updated
	return ev
}

func reduceClaim(s ClaimFacility, a Action) ClaimFacility {
	if a.Op == OpFetchClaimTarget {
		s.Target = step(s.Target, a)
	}
	return s
}

func reduceFilterOptions(s FilterOptions, a Action) FilterOptions {
	if a.Op != OpFetchFilterOptions {
		return s
	}
	kind := domain.FilterKind(a.Key)
	lists := maps.Clone(s.Lists)
	if lists == nil {
		lists = map[domain.FilterKind]Async[[]domain.FilterOption]{}
	}
	lists[kind] = step(lists[kind], a)
	s.Lists = lists

	if a.Phase == PhaseSuccess {
		fetched := maps.Clone(s.FetchedAt)
		if fetched == nil {
			fetched = map[domain.FilterKind]time.Time{}
		}
		fetched[kind] = a.At
		s.FetchedAt = fetched
	}
	return s
}
