package workflow

import (
	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/state"
)

// ResultState is the phase of a search result view.
type ResultState string

// Result states.
const (
	ResultFetching      ResultState = "fetching"
	ResultFoundSingle   ResultState = "found-single"
	ResultFoundMultiple ResultState = "found-multiple"
	ResultNotFound      ResultState = "not-found"
)

// ActionKind names a navigation action offered by a view.
type ActionKind string

// Result view actions.
const (
	ActionSearchByNameAddress ActionKind = "search-by-name-address"
	ActionSearchAgain         ActionKind = "search-again"
	ActionProceed             ActionKind = "proceed"
	ActionSelect              ActionKind = "select"
	ActionAddNew              ActionKind = "add-new"
)

// PreviousOSIDTooltip explains the "Previous OS ID" annotation.
const PreviousOSIDTooltip = "This production location was previously listed under this OS ID. " +
	"It has since been merged into or replaced by the current OS ID shown above."

// Link is an action with its destination.
type Link struct {
	Action ActionKind `json:"action"`
	Label  string     `json:"label"`
	Path   string     `json:"path"`
}

// LocationDetails is the ProductionLocationDetails view of a location.
type LocationDetails struct {
	OSID                domain.OSID        `json:"os_id"`
	Name                string             `json:"name"`
	Address             string             `json:"address"`
	Country             string             `json:"country"`
	ClaimStatus         domain.ClaimStatus `json:"claim_status,omitempty"`
	PreviousOSID        domain.OSID        `json:"previous_os_id,omitempty"`
	PreviousOSIDTooltip string             `json:"previous_os_id_tooltip,omitempty"`
}

// DetailsFor renders loc. The previous-id annotation appears only when searchedID is one
// of the location's historical ids.
func DetailsFor(loc domain.ProductionLocation, searchedID string) LocationDetails {
	d := LocationDetails{
		OSID:        loc.OSID,
		Name:        loc.Name,
		Address:     loc.Address,
		Country:     loc.Country.Name,
		ClaimStatus: loc.ClaimStatus,
	}
	if d.Country == "" {
		d.Country = loc.Country.Alpha2
	}

	if id, err := domain.ParseOSID(searchedID); err == nil && id != loc.OSID && loc.IsHistoricalID(id) {
		d.PreviousOSID = id
		d.PreviousOSIDTooltip = PreviousOSIDTooltip
	}
	return d
}

// InfoPath returns the detail-entry route for an existing location.
func InfoPath(osID domain.OSID) string {
	return singleLocationDir + EncodeURIComponent(string(osID)) + "/info/"
}

// NewLocationPath returns the blank detail-entry route, prefilled from q when given.
func NewLocationPath(q *SearchQuery) string {
	if q == nil {
		return newLocationPath
	}
	return newLocationPath + "?" + q.Encode()
}

// OSIDResult is the view of a search by OS ID.
type OSIDResult struct {
	State    ResultState      `json:"state"`
	SearchID string           `json:"search_id"`
	Location *LocationDetails `json:"location,omitempty"`
	Actions  []Link           `json:"actions"`
	Error    *state.Failure   `json:"error,omitempty"`
}

// PresentOSIDResult renders the single-location lookup for searchedID.
// A transient failure renders as not-found with the error attached for a toast.
func PresentOSIDResult(slice state.Async[*domain.ProductionLocation], searchedID string) OSIDResult {
	view := OSIDResult{SearchID: searchedID, Actions: []Link{}}

	switch {
	case slice.Fetching:
		view.State = ResultFetching
	case slice.Data != nil && slice.Error == nil:
		details := DetailsFor(*slice.Data, searchedID)
		view.State = ResultFoundSingle
		view.Location = &details
		view.Actions = []Link{
			{Action: ActionSearchByNameAddress, Label: "Search by Name and Address", Path: TabURL(TabNameAddress)},
			{Action: ActionProceed, Label: "Yes, add data and claim", Path: InfoPath(slice.Data.OSID)},
		}
	default:
		view.State = ResultNotFound
		if slice.Error != nil && slice.Error.Code != domainerrors.CodeNotFound {
			view.Error = slice.Error
		}
		view.Actions = []Link{
			{Action: ActionSearchByNameAddress, Label: "Search by Name and Address", Path: TabURL(TabNameAddress)},
			{Action: ActionSearchAgain, Label: "Search for another OS ID", Path: TabURL(TabOSID)},
		}
	}
	return view
}

// CandidateItem is one row of the name/address result list.
type CandidateItem struct {
	Details    LocationDetails       `json:"details"`
	Confidence *float64              `json:"confidence,omitempty"`
	Band       domain.ConfidenceBand `json:"band,omitempty"`
	Select     Link                  `json:"select"`
}

// NotListedDialog is the "I don't see my Location" confirmation with its two exits.
type NotListedDialog struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Exits []Link `json:"exits"`
}

// CandidatesResult is the view of a name/address search.
type CandidatesResult struct {
	State     ResultState     `json:"state"`
	Query     SearchQuery     `json:"query"`
	Items     []CandidateItem `json:"items"`
	NotListed NotListedDialog `json:"not_listed"`
	Error     *state.Failure  `json:"error,omitempty"`
}

// PresentCandidates renders the name/address search results for q.
func PresentCandidates(slice state.Async[[]domain.Candidate], q SearchQuery) CandidatesResult {
	view := CandidatesResult{
		Query:     q,
		Items:     make([]CandidateItem, 0, len(slice.Data)),
		NotListed: notListedDialog(q),
		Error:     slice.Error,
	}

	if slice.Fetching {
		view.State = ResultFetching
		return view
	}
	if slice.Error != nil {
		view.State = ResultNotFound
		return view
	}

	view.State = ResultFoundMultiple
	for _, c := range slice.Data {
		view.Items = append(view.Items, CandidateItem{
			Details:    DetailsFor(c.ProductionLocation, ""),
			Confidence: c.Confidence,
			Band:       c.Band(),
			Select:     Link{Action: ActionSelect, Label: "Select", Path: InfoPath(c.OSID)},
		})
	}
	return view
}

func notListedDialog(q SearchQuery) NotListedDialog {
	return NotListedDialog{
		Title: "I don't see my Location",
		Body:  "Please try searching again with a different name or address before adding a new production location.",
		Exits: []Link{
			{Action: ActionSearchAgain, Label: "Search again", Path: TabURL(TabNameAddress)},
			{Action: ActionAddNew, Label: "I don't see my location", Path: NewLocationPath(&q)},
		},
	}
}
