package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PortalURL is the Socrata resource for Chicago crimes since 2001.
const PortalURL = "https://data.cityofchicago.org/resource/ijzp-q8t2.csv"

// RawRecord is one row of a portal export before cleaning.
type RawRecord struct {
	ID          int64
	CaseNumber  string
	Date        string
	PrimaryType string
	Description string
	Beat        string
	District    string
	Ward        int
	Latitude    *float64
	Longitude   *float64
	Arrest      bool
	Domestic    bool
}

// dateLayouts covers the Socrata API and the bulk CSV export.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"01/02/2006 03:04:05 PM",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate parses a portal timestamp as wall-clock time in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ReadCSV parses a portal CSV export. Both snake_case API headers and the
// bulk export's "Primary Type" style are accepted. Malformed rows are skipped.
func ReadCSV(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"date", "primary_type", "latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []RawRecord
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		id, _ := strconv.ParseInt(getField(record, cols, "id"), 10, 64)
		ward, _ := strconv.Atoi(getField(record, cols, "ward"))
		out = append(out, RawRecord{
			ID:          id,
			CaseNumber:  getField(record, cols, "case_number"),
			Date:        getField(record, cols, "date"),
			PrimaryType: getField(record, cols, "primary_type"),
			Description: getField(record, cols, "description"),
			Beat:        getField(record, cols, "beat"),
			District:    getField(record, cols, "district"),
			Ward:        ward,
			Latitude:    parseCoord(getField(record, cols, "latitude")),
			Longitude:   parseCoord(getField(record, cols, "longitude")),
			Arrest:      parseBool(getField(record, cols, "arrest")),
			Domestic:    parseBool(getField(record, cols, "domestic")),
		})
	}
	return out, nil
}

// Fetch downloads the newest limit records from the portal.
func Fetch(ctx context.Context, client *http.Client, baseURL string, limit int) (io.ReadCloser, error) {
	if baseURL == "" {
		baseURL = PortalURL
	}
	q := url.Values{}
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$order", "date DESC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, baseURL)
	}
	return resp.Body, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		col = strings.ToLower(strings.TrimSpace(col))
		m[strings.ReplaceAll(col, " ", "_")] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.ToLower(s))
	return b
}
