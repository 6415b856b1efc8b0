package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

var summaryHeader = []string{
	"hotspot_id", "crime_count", "area_sq_km", "crimes_per_sq_km", "radius_km",
	"top_crime_types", "peak_hour", "weekend_percentage",
}

// WriteSummaryCSV writes one row per analysed hotspot. Unknown peak hour
// and weekend share are left empty.
func WriteSummaryCSV(w io.Writer, analyses []hotspot.HotspotAnalysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, a := range analyses {
		types := make([]string, len(a.TopCategories))
		for i, c := range a.TopCategories {
			types[i] = c.Category + ":" + strconv.Itoa(c.Count)
		}
		var peak, weekend string
		if a.PeakHour != nil {
			peak = strconv.Itoa(*a.PeakHour)
		}
		if a.WeekendPercentage != nil {
			weekend = ftoa(*a.WeekendPercentage)
		}
		if err := cw.Write([]string{
			strconv.Itoa(a.HotspotID),
			strconv.Itoa(a.CrimeCount),
			ftoa(a.AreaSqKm),
			ftoa(a.CrimesPerSqKm),
			ftoa(a.RadiusKm),
			strings.Join(types, ";"),
			peak,
			weekend,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }
