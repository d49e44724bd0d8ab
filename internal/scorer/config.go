// Package scorer computes specimen quality scores and review priority tiers.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/model"
)

// DefaultConfig returns a config.QualityConfig with the reference defaults.
// Weights sum to 1.
func DefaultConfig() config.QualityConfig {
	return config.QualityConfig{
		RequiredFields: append([]string(nil), model.DefaultRequiredFields...),

		// Weights (sum = 1).
		CompletenessWeight: 0.6,
		ConfidenceWeight:   0.4,

		// Priority thresholds on the 0-100 quality scale.
		HighThreshold:   50,
		MediumThreshold: 75,

		CorrectedConfidence:    1.0,
		ReextractionConfidence: 0.70,
	}
}

// ValidateConfig checks that a QualityConfig is internally consistent.
func ValidateConfig(c config.QualityConfig) error {
	var errs []string

	if len(c.RequiredFields) == 0 {
		errs = append(errs, "required_fields must not be empty")
	}
	seen := make(map[string]bool, len(c.RequiredFields))
	for _, f := range c.RequiredFields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, "required_fields must not contain blank names")
			continue
		}
		if seen[f] {
			errs = append(errs, fmt.Sprintf("required field %q listed twice", f))
		}
		seen[f] = true
	}

	if c.CompletenessWeight < 0 {
		errs = append(errs, "completeness_weight must be >= 0")
	}
	if c.ConfidenceWeight < 0 {
		errs = append(errs, "confidence_weight must be >= 0")
	}
	sum := c.CompletenessWeight + c.ConfidenceWeight
	if math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", sum))
	}

	if c.HighThreshold < 0 || c.HighThreshold > 100 {
		errs = append(errs, "high_threshold must be between 0 and 100")
	}
	if c.MediumThreshold < 0 || c.MediumThreshold > 100 {
		errs = append(errs, "medium_threshold must be between 0 and 100")
	}
	if c.MediumThreshold < c.HighThreshold {
		errs = append(errs, "medium_threshold must be >= high_threshold")
	}

	if c.CorrectedConfidence < 0 || c.CorrectedConfidence > 1 {
		errs = append(errs, "corrected_confidence must be between 0 and 1")
	}
	if c.ReextractionConfidence < 0 || c.ReextractionConfidence > 1 {
		errs = append(errs, "reextraction_confidence must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
