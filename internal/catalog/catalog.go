// Package catalog parses the JE9PEL amateur satellite frequency list and
// joins it with orbital element sets.
package catalog

// Range is a transponder passband in MHz.
type Range struct {
	LowMHz  float64 `json:"low_mhz"`
	HighMHz float64 `json:"high_mhz"`
}

// Info holds the radio details of one amateur satellite as published in the
// JE9PEL list. Frequencies are MHz. A '-' separated frequency field denotes
// a linear transponder passband, a '/' separated one a list of discrete
// carriers.
type Info struct {
	Name          string
	CatalogNumber int

	UplinkRange   *Range
	DownlinkRange *Range
	UplinksMHz    []float64
	DownlinksMHz  []float64
	BeaconsMHz    []float64

	Modes    []string
	Callsign string
	Status   string
}

// HasTransponder reports whether the satellite carries a linear transponder.
func (i Info) HasTransponder() bool {
	return i.UplinkRange != nil || i.DownlinkRange != nil
}
