package catalog

import "github.com/hamsat/skytrack/internal/elements"

// Entry pairs an element set with its catalog info. Info is nil when the
// JE9PEL list has no row for the satellite.
type Entry struct {
	elements.OrbitalElements
	Info *Info
}

// Merge joins element sets with catalog info by catalog number, keeping the
// element set order. Catalog rows without a matching element set are dropped.
func Merge(sats []elements.OrbitalElements, infos []Info) []Entry {
	byNumber := make(map[int]*Info, len(infos))
	for i := range infos {
		byNumber[infos[i].CatalogNumber] = &infos[i]
	}

	entries := make([]Entry, 0, len(sats))
	for _, el := range sats {
		entries = append(entries, Entry{
			OrbitalElements: el,
			Info:            byNumber[el.CatalogNumber],
		})
	}
	return entries
}
