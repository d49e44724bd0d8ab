package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/model"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon string
		wantOK   bool
		code     string
		severity model.IssueSeverity
	}{
		{name: "none", wantOK: false},
		{name: "valid", lat: "42.2808", lon: "-83.7430", wantOK: true},
		{name: "partial", lat: "42.28", code: CodeCoordsPartial, severity: model.SeverityWarning},
		{name: "unparsable", lat: "42°N", lon: "83°W", code: CodeCoordsUnparsable, severity: model.SeverityError},
		{name: "nan latitude", lat: "NaN", lon: "10", code: CodeCoordsUnparsable, severity: model.SeverityError},
		{name: "nan longitude", lat: "42.2", lon: "nan", code: CodeCoordsUnparsable, severity: model.SeverityError},
		{name: "out of range", lat: "95", lon: "10", code: CodeCoordsOutOfRange, severity: model.SeverityCritical},
		{name: "null island", lat: "0", lon: "0.0", code: CodeCoordsZero, severity: model.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := specimen(map[string]string{
				model.TermDecimalLatitude:  tt.lat,
				model.TermDecimalLongitude: tt.lon,
			})
			p, issues := ParsePoint(rec)
			if tt.wantOK {
				require.NotNil(t, p)
				assert.Empty(t, issues)
				return
			}
			assert.Nil(t, p)
			if tt.code == "" {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, 1)
			assert.Equal(t, tt.code, issues[0].Code)
			assert.Equal(t, tt.severity, issues[0].Severity)
		})
	}
}

func TestParsePoint_AxisOrder(t *testing.T) {
	rec := specimen(map[string]string{
		model.TermDecimalLatitude:  "42.5",
		model.TermDecimalLongitude: "-83.25",
	})
	p, _ := ParsePoint(rec)
	require.NotNil(t, p)
	assert.InDelta(t, -83.25, p.X(), 1e-9)
	assert.InDelta(t, 42.5, p.Y(), 1e-9)
	assert.Equal(t, 4326, p.SRID())
}

func TestCountryMatches(t *testing.T) {
	areas := []Area{
		{Type: "EEZ", Title: "Canada"},
		{Type: "Political", Title: "United States of America", ISOCountryCode: "US"},
	}
	assert.True(t, countryMatches("United States of America", areas))
	assert.True(t, countryMatches(" us ", areas))
	assert.False(t, countryMatches("Canada", areas), "non-political areas are ignored")
}
