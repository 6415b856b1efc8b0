// Package ingest reads Chicago Data Portal crime exports and cleans them
// into domain records.
package ingest

import (
	"strings"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// Categories assigned by Categorize.
const (
	CategoryAssaultBattery = "ASSAULT/BATTERY"
	CategoryTheft          = "THEFT"
	CategoryVandalism      = "VANDALISM"
	CategoryDrugRelated    = "DRUG_RELATED"
	CategoryBurglary       = "BURGLARY"
	CategoryRobbery        = "ROBBERY"
	CategoryVehicleTheft   = "VEHICLE_THEFT"
	CategoryOther          = "OTHER"
)

var categories = map[string]string{
	"BATTERY":             CategoryAssaultBattery,
	"ASSAULT":             CategoryAssaultBattery,
	"THEFT":               CategoryTheft,
	"CRIMINAL DAMAGE":     CategoryVandalism,
	"NARCOTICS":           CategoryDrugRelated,
	"BURGLARY":            CategoryBurglary,
	"ROBBERY":             CategoryRobbery,
	"MOTOR VEHICLE THEFT": CategoryVehicleTheft,
}

// Categorize maps a portal primary type onto the coarse category set.
func Categorize(primaryType string) string {
	if c, ok := categories[strings.ToUpper(strings.TrimSpace(primaryType))]; ok {
		return c
	}
	return CategoryOther
}

// earliest is the first date kept; older portal records are sparse.
var earliest = time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)

// Drop reasons reported in Stats.
const (
	DropMissing   = "missing_fields"
	DropOutside   = "outside_bounds"
	DropBadDate   = "bad_date"
	DropOutOfSpan = "date_out_of_range"
)

// Stats counts kept and dropped records by reason.
type Stats struct {
	Read    int            `json:"read"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped"`
}

// Cleaner validates raw records and derives calendar attributes.
type Cleaner struct {
	Bounds hotspot.BoundingBox
	Now    func() time.Time
}

// NewCleaner returns a cleaner for the Chicago city limits.
func NewCleaner() *Cleaner {
	return &Cleaner{Bounds: hotspot.ChicagoBounds, Now: time.Now}
}

// Clean converts r into a Crime. The second result is empty when the record
// is kept and otherwise names the drop reason.
func (c *Cleaner) Clean(r RawRecord) (domain.Crime, string) {
	if r.Latitude == nil || r.Longitude == nil || strings.TrimSpace(r.PrimaryType) == "" || strings.TrimSpace(r.Date) == "" {
		return domain.Crime{}, DropMissing
	}
	loc := hotspot.Point{Lat: *r.Latitude, Lon: *r.Longitude}
	if !c.Bounds.Contains(loc) {
		return domain.Crime{}, DropOutside
	}
	when, err := ParseDate(r.Date)
	if err != nil {
		return domain.Crime{}, DropBadDate
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if when.Before(earliest) || when.After(now()) {
		return domain.Crime{}, DropOutOfSpan
	}

	primary := strings.ToUpper(strings.TrimSpace(r.PrimaryType))
	weekday := (int(when.Weekday()) + 6) % 7
	return domain.Crime{
		ID:          r.ID,
		CaseNumber:  r.CaseNumber,
		Date:        when,
		PrimaryType: primary,
		Description: r.Description,
		Category:    Categorize(primary),
		Location:    domain.GeoPoint{Lat: loc.Lat, Lon: loc.Lon},
		Beat:        r.Beat,
		District:    r.District,
		Ward:        r.Ward,
		Year:        when.Year(),
		Month:       int(when.Month()),
		Hour:        when.Hour(),
		DayOfWeek:   weekday,
		IsWeekend:   weekday >= 5,
		Season:      hotspot.SeasonOf(when.Month()),
		Arrest:      r.Arrest,
		Domestic:    r.Domestic,
	}, ""
}

// CleanAll cleans every record and reports what was dropped.
func (c *Cleaner) CleanAll(records []RawRecord) ([]domain.Crime, Stats) {
	st := Stats{Read: len(records), Dropped: map[string]int{}}
	out := make([]domain.Crime, 0, len(records))
	for _, r := range records {
		crime, reason := c.Clean(r)
		if reason != "" {
			st.Dropped[reason]++
			continue
		}
		out = append(out, crime)
	}
	st.Kept = len(out)
	return out, st
}
