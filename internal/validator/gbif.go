// Package validator checks specimen names and localities against the GBIF
// backbone. Results are advisory: they are stored on the record and feed
// the priority rule, nothing more.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/resilience"
)

// Source is recorded on every result produced here.
const Source = "gbif-backbone"

// Issue codes raised by the name check.
const (
	CodeNameMissing       = "name_missing"
	CodeNameUnmatched     = "name_unmatched"
	CodeNameHigherRank    = "name_higher_rank"
	CodeNameFuzzy         = "name_fuzzy"
	CodeNameLowConfidence = "name_low_confidence"
	CodeNameSynonym       = "name_synonym"
)

// Validator produces a validation result for a record.
type Validator interface {
	Validate(ctx context.Context, rec *model.Specimen) (*model.ValidationResult, error)
}

// Nop is used when validation is disabled. It returns no result.
type Nop struct{}

func (Nop) Validate(context.Context, *model.Specimen) (*model.ValidationResult, error) {
	return nil, nil
}

// NameMatch is the subset of a GBIF species/match response used here.
type NameMatch struct {
	UsageKey       int    `json:"usageKey"`
	ScientificName string `json:"scientificName"`
	CanonicalName  string `json:"canonicalName"`
	Rank           string `json:"rank"`
	Status         string `json:"status"`
	Confidence     int    `json:"confidence"`
	MatchType      string `json:"matchType"`
	Family         string `json:"family"`
}

// Area is one reverse-geocoding hit.
type Area struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	ISOCountryCode string `json:"isoCountryCode2Digit"`
}

// GBIF validates against api.gbif.org. It is safe for concurrent use.
type GBIF struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	backoff resilience.Backoff
	names   *expirable.LRU[string, NameMatch]
	minConf int
	now     func() time.Time
}

// NewGBIF builds a client from cfg.
func NewGBIF(cfg config.ValidatorConfig) *GBIF {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	burst := max(cfg.Burst, 1)
	size := cfg.CacheSize
	if size <= 0 {
		size = 10000
	}
	ttl := time.Duration(cfg.CacheTTLMins) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	minConf := cfg.MinMatchConfidence
	if minConf <= 0 {
		minConf = 90
	}

	return &GBIF{
		base:    strings.TrimRight(cfg.GBIFBaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: resilience.NewBreaker("gbif", cfg.Circuit),
		backoff: resilience.BackoffFromConfig(cfg.Retry),
		names:   expirable.NewLRU[string, NameMatch](size, nil, ttl),
		minConf: minConf,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// New returns the configured validator: GBIF when enabled, Nop otherwise.
func New(cfg config.ValidatorConfig) Validator {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewGBIF(cfg)
}

// Validate checks the scientific name and, when present, the coordinates.
// An upstream failure is returned as an error; the caller keeps whatever
// result the record already had.
func (g *GBIF) Validate(ctx context.Context, rec *model.Specimen) (*model.ValidationResult, error) {
	res := &model.ValidationResult{Source: Source, ValidatedAt: g.now()}

	name := strings.TrimSpace(rec.Fields[model.TermScientificName])
	if name == "" {
		res.Issues = append(res.Issues, model.ValidationIssue{
			Code:     CodeNameMissing,
			Field:    model.TermScientificName,
			Message:  "no scientific name to verify",
			Severity: model.SeverityError,
		})
	} else {
		m, err := g.MatchName(ctx, name)
		if err != nil {
			return nil, err
		}
		g.judgeName(res, m)
	}

	point, issues := ParsePoint(rec)
	res.Issues = append(res.Issues, issues...)
	if point != nil {
		if country := strings.TrimSpace(rec.Fields[model.TermCountry]); country != "" {
			areas, err := g.ReverseGeocode(ctx, point)
			if err != nil {
				return nil, err
			}
			if len(areas) > 0 && !countryMatches(country, areas) {
				res.Issues = append(res.Issues, model.ValidationIssue{
					Code:     CodeCountryMismatch,
					Field:    model.TermCountry,
					Message:  fmt.Sprintf("coordinates fall outside %s", country),
					Severity: model.SeverityError,
				})
			}
		}
	}
	return res, nil
}

func (g *GBIF) judgeName(res *model.ValidationResult, m NameMatch) {
	res.MatchedName = m.ScientificName
	res.Confidence = float64(m.Confidence) / 100

	switch m.MatchType {
	case "EXACT", "FUZZY":
		res.Verified = m.Confidence >= g.minConf
		if m.MatchType == "FUZZY" {
			res.Issues = append(res.Issues, model.ValidationIssue{
				Code:     CodeNameFuzzy,
				Field:    model.TermScientificName,
				Message:  "fuzzy match to " + m.ScientificName,
				Severity: model.SeverityWarning,
			})
		}
		if !res.Verified {
			res.Issues = append(res.Issues, model.ValidationIssue{
				Code:     CodeNameLowConfidence,
				Field:    model.TermScientificName,
				Message:  fmt.Sprintf("match confidence %d below %d", m.Confidence, g.minConf),
				Severity: model.SeverityWarning,
			})
		}
		if m.Status == "SYNONYM" {
			res.Issues = append(res.Issues, model.ValidationIssue{
				Code:     CodeNameSynonym,
				Field:    model.TermScientificName,
				Message:  "name is a synonym in the backbone",
				Severity: model.SeverityWarning,
			})
		}
	case "HIGHERRANK":
		res.Issues = append(res.Issues, model.ValidationIssue{
			Code:     CodeNameHigherRank,
			Field:    model.TermScientificName,
			Message:  "only matched at rank " + strings.ToLower(m.Rank),
			Severity: model.SeverityError,
		})
	default:
		res.Issues = append(res.Issues, model.ValidationIssue{
			Code:     CodeNameUnmatched,
			Field:    model.TermScientificName,
			Message:  "name not found in backbone",
			Severity: model.SeverityError,
		})
	}
}

// MatchName looks up name in the backbone, using the cache when possible.
func (g *GBIF) MatchName(ctx context.Context, name string) (NameMatch, error) {
	key := strings.ToLower(name)
	if m, ok := g.names.Get(key); ok {
		return m, nil
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("kingdom", "Plantae")
	var m NameMatch
	if err := g.getJSON(ctx, "/species/match?"+q.Encode(), &m); err != nil {
		return NameMatch{}, eris.Wrapf(err, "validator: match name %q", name)
	}
	g.names.Add(key, m)
	return m, nil
}

// ReverseGeocode returns the areas containing point.
func (g *GBIF) ReverseGeocode(ctx context.Context, point *geom.Point) ([]Area, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(point.Y(), 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(point.X(), 'f', -1, 64))
	var areas []Area
	if err := g.getJSON(ctx, "/geocode/reverse?"+q.Encode(), &areas); err != nil {
		return nil, eris.Wrap(err, "validator: reverse geocode")
	}
	return areas, nil
}

func (g *GBIF) getJSON(ctx context.Context, path string, out any) error {
	body, err := resilience.Retry(ctx, g.backoff, "gbif", func(ctx context.Context) ([]byte, error) {
		return resilience.Call(ctx, g.breaker, func(ctx context.Context) ([]byte, error) {
			return g.fetch(ctx, path)
		})
	})
	if err != nil {
		return err
	}
	return eris.Wrap(json.Unmarshal(body, out), "validator: decode response")
}

func (g *GBIF) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &resilience.UpstreamError{Service: "gbif", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &resilience.UpstreamError{Service: "gbif", Err: err}
	}
	zap.L().Debug("validator: gbif call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.UpstreamError{
			Service:    "gbif",
			StatusCode: resp.StatusCode,
			Err:        eris.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}
	return body, nil
}
