package domain

import (
	"time"

	"github.com/samirrijal/chicrime/internal/experiment"
)

// Crime is one cleaned incident record.
type Crime struct {
	ID          int64     `json:"id"`
	CaseNumber  string    `json:"case_number"`
	Date        time.Time `json:"date"`
	PrimaryType string    `json:"primary_type"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"crime_category"`
	Location    GeoPoint  `json:"location"`
	Beat        string    `json:"beat,omitempty"`
	District    string    `json:"district,omitempty"`
	Ward        int       `json:"ward,omitempty"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Hour        int       `json:"hour"`
	DayOfWeek   int       `json:"day_of_week"` // 0 = Monday
	IsWeekend   bool      `json:"is_weekend"`
	Season      string    `json:"season"`
	Arrest      bool      `json:"arrest"`
	Domestic    bool      `json:"domestic"`
	CreatedAt   time.Time `json:"created_at"`
}

// CrimeFilter narrows crime queries. Zero fields are unconstrained.
type CrimeFilter struct {
	CrimeType string     `json:"crime_type,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Bounds    *Bounds    `json:"bounds,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// TypeCount is the number of crimes of one primary type.
type TypeCount struct {
	PrimaryType string  `json:"primary_type"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
}

// MonthlyCount is the number of crimes in one calendar month.
type MonthlyCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// DailyCount is the number of crimes of one type on one day.
type DailyCount struct {
	Date        time.Time `json:"date"`
	PrimaryType string    `json:"primary_type"`
	Count       int       `json:"count"`
}

// GridCell is a rounded lat/lon cell with its incident count.
type GridCell struct {
	Lat   float64 `json:"lat_grid"`
	Lon   float64 `json:"lon_grid"`
	Count int     `json:"crime_count"`
}

// ExperimentRun is a persisted parameter sweep.
type ExperimentRun struct {
	ID            string              `json:"id"`
	Parameter     string              `json:"parameter"`
	Results       []experiment.Result `json:"results"`
	BestValue     float64             `json:"best_value"`
	Weights       experiment.Weights  `json:"weights"`
	IncidentCount int                 `json:"incident_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

// IngestRun summarises one load of portal data.
type IngestRun struct {
	Source     string         `json:"source"`
	Read       int            `json:"read"`
	Kept       int            `json:"kept"`
	Inserted   int            `json:"inserted"`
	Dropped    map[string]int `json:"dropped"`
	FinishedAt time.Time      `json:"finished_at"`
}
