package elements

import "time"

// OrbitalElements is a parsed two-line element set for one satellite.
// Instances are immutable once parsed and are replaced wholesale when a
// fresh element set is ingested, never mutated field by field.
type OrbitalElements struct {
	CatalogNumber int
	Name          string
	Epoch         time.Time

	InclinationDeg float64
	RAANDeg        float64
	Eccentricity   float64
	ArgPerigeeDeg  float64
	MeanAnomalyDeg float64
	MeanMotion     float64 // revolutions per day
	BStar          float64 // drag term (1/earth radii)
	ElementSet     int

	// Raw 69-column lines, kept because the SGP4 initializer consumes them.
	Line1 string
	Line2 string
}

// EpochRange is the minimum and maximum element epochs in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete element set snapshot from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []OrbitalElements
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, sats []OrbitalElements) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: sats,
	}
	if len(sats) > 0 {
		ds.EpochRange.Min = sats[0].Epoch
		ds.EpochRange.Max = sats[0].Epoch
		for _, e := range sats[1:] {
			if e.Epoch.Before(ds.EpochRange.Min) {
				ds.EpochRange.Min = e.Epoch
			}
			if e.Epoch.After(ds.EpochRange.Max) {
				ds.EpochRange.Max = e.Epoch
			}
		}
	}
	return ds
}
