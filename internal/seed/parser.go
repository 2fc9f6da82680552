// Package seed parses the raw external airport dataset used to bootstrap an
// empty record store. The upstream file is an array of loosely-structured
// objects and is sometimes malformed (concatenated objects with no enclosing
// array); Repair normalizes that shape before parsing.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/aeronav/airports/internal/airport"
)

// Record is one raw airport row from the seed dataset.
type Record struct {
	Name string  `json:"name"`
	City string  `json:"city"`
	IATA string  `json:"iata_faa"`
	ICAO string  `json:"icao"`
	Lat  *Number `json:"lat"`
	Lng  *Number `json:"lng"`
	Alt  *Number `json:"alt"`
	TZ   string  `json:"tz"`
}

// Code resolves the record's canonical code, preferring IATA over ICAO.
func (r Record) Code() (string, error) {
	return airport.ResolveCode(r.IATA, r.ICAO)
}

// Airport converts the raw record to a domain record. The city falls back to
// the airport name when the dataset leaves it blank.
func (r Record) Airport() *airport.Airport {
	city := r.City
	if city == "" {
		city = r.Name
	}
	return &airport.Airport{
		Name:      r.Name,
		City:      city,
		IATA:      r.IATA,
		ICAO:      r.ICAO,
		Latitude:  r.Lat.Float(),
		Longitude: r.Lng.Float(),
		Altitude:  r.Alt.Float(),
		Timezone:  r.TZ,
	}
}

// Number is a float that tolerates quoted numeric values in the dataset.
type Number float64

// UnmarshalJSON accepts both 12.5 and "12.5".
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing number %q: %w", s, err)
	}
	*n = Number(f)
	return nil
}

// Float returns the value as a plain *float64, nil for an absent field.
func (n *Number) Float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// FormatError reports a seed source that stayed unparseable even after repair.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("seed file %s is not parseable: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var concatenatedObjects = regexp.MustCompile(`}\s*{`)

// Repair rewrites a stream of concatenated JSON objects into a well-formed
// array: objects are joined with commas and the whole payload is wrapped in
// brackets. Input that already has an enclosing array is returned unchanged.
func Repair(raw []byte) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return []byte(trimmed)
	}
	return []byte("[" + concatenatedObjects.ReplaceAllString(trimmed, "},{") + "]")
}

// Load reads and parses the seed file at path. Rows that fail to decode
// individually are skipped and counted, not fatal. A file missing entirely
// surfaces the underlying fs error; a file that cannot be parsed even after
// Repair yields a *FormatError.
func Load(path string) (records []Record, skipped int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		if err := json.Unmarshal(Repair(raw), &rows); err != nil {
			return nil, 0, &FormatError{Path: path, Err: err}
		}
	}

	for _, row := range rows {
		var rec Record
		if err := json.Unmarshal(row, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}
