package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// UserWeights defines the per-term points awarded by user search.
type UserWeights struct {
	ExactUsername    float64 `json:"exact_username"`     // default: 100
	UsernamePrefix   float64 `json:"username_prefix"`    // default: 50
	ExactFullName    float64 `json:"exact_full_name"`    // default: 80
	FullNamePrefix   float64 `json:"full_name_prefix"`   // default: 40
	UsernameContains float64 `json:"username_contains"`  // default: 20
	FullNameContains float64 `json:"full_name_contains"` // default: 15
	NamePartContains float64 `json:"name_part_contains"` // default: 10, applied to name and surname separately
}

// Weights holds all ranking weight configurations.
type Weights struct {
	User UserWeights `json:"user"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default ranking weight configuration.
// Exact username hits dominate, then full-name matches, then partial matches.
func DefaultWeights() *Weights {
	return &Weights{
		User: UserWeights{
			ExactUsername:    100,
			UsernamePrefix:   50,
			ExactFullName:    80,
			FullNamePrefix:   40,
			UsernameContains: 20,
			FullNameContains: 15,
			NamePartContains: 10,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path yields the defaults. On read or parse failure the defaults
// are returned together with the error. Partial files are merged over the
// defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration applies the non-zero values of override onto a copy of base.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	o := override.User
	mergeField(&result.User.ExactUsername, o.ExactUsername)
	mergeField(&result.User.UsernamePrefix, o.UsernamePrefix)
	mergeField(&result.User.ExactFullName, o.ExactFullName)
	mergeField(&result.User.FullNamePrefix, o.FullNamePrefix)
	mergeField(&result.User.UsernameContains, o.UsernameContains)
	mergeField(&result.User.FullNameContains, o.FullNameContains)
	mergeField(&result.User.NamePartContains, o.NamePartContains)

	return &result
}

func mergeField(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	check := func(name string, def, got float64) {
		if def != got {
			overrides = append(overrides, fmt.Sprintf("user.%s: %.0f -> %.0f", name, def, got))
		}
	}
	d, l := defaults.User, loaded.User
	check("exact_username", d.ExactUsername, l.ExactUsername)
	check("username_prefix", d.UsernamePrefix, l.UsernamePrefix)
	check("exact_full_name", d.ExactFullName, l.ExactFullName)
	check("full_name_prefix", d.FullNamePrefix, l.FullNamePrefix)
	check("username_contains", d.UsernameContains, l.UsernameContains)
	check("full_name_contains", d.FullNameContains, l.FullNameContains)
	check("name_part_contains", d.NamePartContains, l.NamePartContains)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
