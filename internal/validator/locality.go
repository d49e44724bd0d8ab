package validator

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/herbarium-review/internal/model"
)

// SRID of decimal latitude/longitude as recorded on labels.
const wgs84 = 4326

// Issue codes raised by the locality check.
const (
	CodeCoordsUnparsable = "coords_unparsable"
	CodeCoordsOutOfRange = "coords_out_of_range"
	CodeCoordsZero       = "coords_zero"
	CodeCoordsPartial    = "coords_partial"
	CodeCountryMismatch  = "country_mismatch"
)

// ParsePoint reads decimalLatitude/decimalLongitude off the record. It returns
// a nil point when the record has no usable coordinates, together with the
// issues that explain why. A record without any coordinates has no issues.
func ParsePoint(rec *model.Specimen) (*geom.Point, []model.ValidationIssue) {
	latS := strings.TrimSpace(rec.Fields[model.TermDecimalLatitude])
	lonS := strings.TrimSpace(rec.Fields[model.TermDecimalLongitude])

	switch {
	case latS == "" && lonS == "":
		return nil, nil
	case latS == "" || lonS == "":
		return nil, []model.ValidationIssue{{
			Code:     CodeCoordsPartial,
			Field:    model.TermDecimalLatitude,
			Message:  "only one of latitude and longitude is present",
			Severity: model.SeverityWarning,
		}}
	}

	lat, errLat := strconv.ParseFloat(latS, 64)
	lon, errLon := strconv.ParseFloat(lonS, 64)
	if errLat != nil || errLon != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return nil, []model.ValidationIssue{{
			Code:     CodeCoordsUnparsable,
			Field:    model.TermDecimalLatitude,
			Message:  "coordinates are not decimal degrees: " + latS + ", " + lonS,
			Severity: model.SeverityError,
		}}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, []model.ValidationIssue{{
			Code:     CodeCoordsOutOfRange,
			Field:    model.TermDecimalLatitude,
			Message:  "coordinates outside WGS84 range",
			Severity: model.SeverityCritical,
		}}
	}
	if lat == 0 && lon == 0 {
		return nil, []model.ValidationIssue{{
			Code:     CodeCoordsZero,
			Field:    model.TermDecimalLatitude,
			Message:  "coordinates are 0,0",
			Severity: model.SeverityCritical,
		}}
	}

	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(wgs84), nil
}

// countryMatches reports whether any reverse-geocoded area names the
// recorded country, by title or ISO code.
func countryMatches(country string, areas []Area) bool {
	country = strings.ToLower(strings.TrimSpace(country))
	for _, a := range areas {
		if a.Type != "Political" {
			continue
		}
		if strings.ToLower(a.Title) == country || strings.ToLower(a.ISOCountryCode) == country {
			return true
		}
	}
	return false
}
