package airport

import (
	"strings"
	"time"
)

// codePlaceholder is the literal some upstream datasets use for "no code".
const codePlaceholder = "Null"

// Airport is an authoritative airport record.
type Airport struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	City      string   `json:"city"`
	IATA      string   `json:"iata_code,omitempty"`
	ICAO      string   `json:"icao_code,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Patch carries the mutable fields of an update request.
// Nil fields are left unchanged.
type Patch struct {
	Name      *string  `json:"name,omitempty"`
	City      *string  `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
}

// HasCoordinates reports whether the patch carries a full coordinate pair.
func (p Patch) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// PopularAirport is one entry of the popularity ranking.
type PopularAirport struct {
	Code  string  `json:"code"`
	Score float64 `json:"score"`
}

// usableCode reports whether s is a real airport code rather than
// empty or the dataset placeholder.
func usableCode(s string) bool {
	return s != "" && s != codePlaceholder
}

// ResolveCode derives the canonical code for an airport: the IATA code
// when usable, the ICAO code otherwise. Returns ErrNoCode when neither
// field carries a usable value.
func ResolveCode(iata, icao string) (string, error) {
	switch {
	case usableCode(iata):
		return iata, nil
	case usableCode(icao):
		return icao, nil
	default:
		return "", ErrNoCode
	}
}

// Code returns the canonical code of the record, per ResolveCode.
func (a Airport) Code() (string, error) {
	return ResolveCode(a.IATA, a.ICAO)
}

// HasCoordinates reports whether the record can be geo-indexed.
func (a Airport) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// NormalizeCode uppercases and trims a caller-supplied lookup code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
