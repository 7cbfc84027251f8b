// Package workflow implements the contribution flow controllers: search dispatch, result
// presentation, the contribution form, the moderation tracker dialog and the staff review queue.
// Controllers are plain values so a session can snapshot and restore them.
package workflow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/normalize"
	"github.com/opensupplyhub/contribute/internal/validation"
)

// Client routes.
const (
	LandingPath       = "/contribute/production-location"
	osIDSearchPath    = "/contribute/single-location/search/id/"
	resultPath        = "/contribute/single-location/search/result"
	newLocationPath   = "/contribute/single-location/info/"
	singleLocationDir = "/contribute/single-location/"
)

// Tab is a search tab on the landing page.
type Tab string

// Search tabs.
const (
	TabOSID        Tab = "os-id"
	TabNameAddress Tab = "name-address"

	DefaultTab = TabNameAddress
)

// ResolveTab maps the tab query parameter to a tab. Any unknown or missing value resolves
// to DefaultTab and reports that the URL must be rewritten.
func ResolveTab(raw string) (Tab, bool) {
	switch Tab(raw) {
	case TabOSID, TabNameAddress:
		return Tab(raw), false
	default:
		return DefaultTab, true
	}
}

// TabURL returns the landing URL with tab selected.
func TabURL(tab Tab) string {
	return LandingPath + "?tab=" + string(tab)
}

// OSIDSearch is the search-by-OS-ID tab.
type OSIDSearch struct {
	Value string `json:"value"`
}

// SetValue stores v uppercased.
func (s *OSIDSearch) SetValue(v string) {
	s.Value = domain.NormalizeOSIDInput(v)
}

// CanSubmit reports whether the input has exactly the OS ID length.
func (s OSIDSearch) CanSubmit() bool {
	return utf8.RuneCountInString(s.Value) == domain.OSIDLength
}

// SubmitPath returns the lookup route with the id as an encoded path segment.
func (s OSIDSearch) SubmitPath() string {
	return osIDSearchPath + EncodeURIComponent(s.Value)
}

// Name/address search fields.
const (
	FieldName    = "name"
	FieldAddress = "address"
	FieldCountry = "country"
)

// NameAddressSearch is the search-by-name-and-address tab.
type NameAddressSearch struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Country string            `json:"country"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (s *NameAddressSearch) field(name string) (*string, error) {
	switch name {
	case FieldName:
		return &s.Name, nil
	case FieldAddress:
		return &s.Address, nil
	case FieldCountry:
		return &s.Country, nil
	default:
		return nil, fmt.Errorf("unknown search field %q", name)
	}
}

// SetField updates one field. A non-empty value clears the field's error.
func (s *NameAddressSearch) SetField(name, value string) error {
	f, err := s.field(name)
	if err != nil {
		return err
	}
	*f = value
	if strings.TrimSpace(value) != "" {
		delete(s.Errors, name)
	}
	return nil
}

// BlurField marks an empty required field as missing.
func (s *NameAddressSearch) BlurField(name string) error {
	f, err := s.field(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*f) == "" {
		if s.Errors == nil {
			s.Errors = make(map[string]string)
		}
		s.Errors[name] = validation.RequiredMessage
	}
	return nil
}

// CanSubmit reports whether all three fields are filled in.
func (s NameAddressSearch) CanSubmit() bool {
	return strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.Address) != "" &&
		strings.TrimSpace(s.Country) != ""
}

// Query returns the trimmed search terms.
func (s NameAddressSearch) Query() SearchQuery {
	return SearchQuery{
		Name:    normalize.Field(s.Name),
		Address: normalize.Field(s.Address),
		Country: normalize.CountryCode(s.Country),
	}
}

// SubmitURL returns the results route carrying the encoded search terms.
func (s NameAddressSearch) SubmitURL() string {
	return resultPath + "?" + s.Query().Encode()
}

// SearchQuery is a name/address/country potential-match search.
type SearchQuery struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Country string `json:"country"`
}

// Encode builds name=..&address=..&country=.. in that order with spaces as %20.
func (q SearchQuery) Encode() string {
	return "name=" + EncodeURIComponent(q.Name) +
		"&address=" + EncodeURIComponent(q.Address) +
		"&country=" + EncodeURIComponent(q.Country)
}

// Dispatcher holds the landing page: the selected tab and both tabs' inputs.
type Dispatcher struct {
	Tab         Tab               `json:"tab"`
	OSID        OSIDSearch        `json:"os_id"`
	NameAddress NameAddressSearch `json:"name_address"`
}

// NewDispatcher returns a dispatcher on the default tab.
func NewDispatcher() Dispatcher {
	return Dispatcher{Tab: DefaultTab}
}

// SelectTab switches tabs and returns the rewritten URL. Inputs of both tabs are kept.
func (d *Dispatcher) SelectTab(tab Tab) string {
	resolved, _ := ResolveTab(string(tab))
	d.Tab = resolved
	return TabURL(resolved)
}

// EncodeURIComponent escapes everything except A-Z a-z 0-9 and - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
