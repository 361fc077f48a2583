package models

// Station represents a fixed monitoring point. All text fields are trimmed.
type Station struct {
	ID       int64  `json:"id"`
	River    string `json:"river"`
	Code     string `json:"station"`
	Location string `json:"location"`
	Tambon   string `json:"tambon"`
	Amphoe   string `json:"amphoe"`
	Province string `json:"province"`
}

// StationFilters holds the independent, sorted, de-duplicated dropdown values
type StationFilters struct {
	Rivers    []string `json:"rivers"`
	Provinces []string `json:"provinces"`
	Tambons   []string `json:"tambons"`
	Amphoes   []string `json:"amphoes"`
}

// LocationHierarchy maps province -> amphoe -> sorted tambons
type LocationHierarchy map[string]map[string][]string
