package catalog

import "sort"

// Filter selects catalog entries by link class and mode. When none of the
// class flags are set the class check passes for every entry, so a zero
// Filter matches everything.
type Filter struct {
	Transponder bool
	Uplink      bool
	Downlink    bool
	Beacon      bool

	// Mode restricts to satellites listing this mode. Empty or "Any"
	// matches all modes.
	Mode string
}

// Match reports whether info satisfies the filter.
func (f Filter) Match(info Info) bool {
	if !f.classMatch(info) {
		return false
	}
	if f.Mode == "" || f.Mode == "Any" {
		return true
	}
	for _, m := range info.Modes {
		if m == f.Mode {
			return true
		}
	}
	return false
}

func (f Filter) classMatch(info Info) bool {
	if !f.Transponder && !f.Uplink && !f.Downlink && !f.Beacon {
		return true
	}
	switch {
	case f.Transponder && info.HasTransponder():
		return true
	case f.Uplink && len(info.UplinksMHz) > 0:
		return true
	case f.Downlink && len(info.DownlinksMHz) > 0:
		return true
	case f.Beacon && len(info.BeaconsMHz) > 0:
		return true
	}
	return false
}

// Select returns the entries matching the filter, in input order.
func Select(infos []Info, f Filter) []Info {
	var out []Info
	for _, info := range infos {
		if f.Match(info) {
			out = append(out, info)
		}
	}
	return out
}

// Modes returns the sorted distinct modes across the entries matching the
// filter's class flags (the mode restriction itself is ignored, so the list
// is suitable for populating a mode selector).
func Modes(infos []Info, f Filter) []string {
	f.Mode = ""
	set := make(map[string]bool)
	for _, info := range infos {
		if !f.Match(info) {
			continue
		}
		for _, m := range info.Modes {
			set[m] = true
		}
	}
	modes := make([]string, 0, len(set))
	for m := range set {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}
