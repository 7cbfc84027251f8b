package domain

// FilterKind names one of the option lists the backend serves for select inputs.
type FilterKind string

// Filter option kinds.
const (
	FilterCountries       FilterKind = "countries"
	FilterSectors         FilterKind = "sectors"
	FilterProcessingTypes FilterKind = "processing-types"
)

// FilterKinds lists every supported kind.
var FilterKinds = []FilterKind{FilterCountries, FilterSectors, FilterProcessingTypes}

// Valid reports whether k is a supported kind.
func (k FilterKind) Valid() bool {
	switch k {
	case FilterCountries, FilterSectors, FilterProcessingTypes:
		return true
	}
	return false
}

// FilterOption is one entry of a select input.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FeatureFlags are the instance switches the contribution flow reads.
type FeatureFlags struct {
	DisableListUploading     bool `json:"disable_list_uploading"`
	ShowAdditionalIdentifier bool `json:"show_additional_identifiers"`
	PrivateInstance          bool `json:"private_instance"`
}
