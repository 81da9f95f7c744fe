// Package policy holds the tunable thresholds of the verification gate.
//
// All numeric policy lives in Policy; nothing else in the module hard-codes an
// age, interval or bracket value.
package policy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tier is the coarse reliability grouping of an age sample. Informational only.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// BracketCount is the number of age brackets the estimator produces.
const BracketCount = 8

// Bracket maps one estimator bracket to the values used for threshold checks.
type Bracket struct {
	Label             string `yaml:"label"`
	RepresentativeAge int    `yaml:"representative_age"`
	Tier              Tier   `yaml:"tier"`
}

// Policy is the single configuration structure for the verification gate.
type Policy struct {
	// LegalAge is the minimum purchasable age (inclusive).
	LegalAge int `yaml:"legal_age"`
	// ConfidentAge is the estimated age at and above which the camera alone approves.
	ConfidentAge int `yaml:"confident_age"`
	// SamplingInterval is the sampler tick period.
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	// SamplingTimeout bounds the SAMPLING state. Zero disables the timeout.
	SamplingTimeout time.Duration `yaml:"sampling_timeout"`
	// LookupTimeout bounds one document lookup.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	// AutoDecide lets a threshold-crossing sample drive the decision without an
	// operator confirm.
	AutoDecide bool `yaml:"auto_decide"`
	// MaxEstimatorFailures is the number of consecutive estimator errors after
	// which the device is treated as unavailable.
	MaxEstimatorFailures int `yaml:"max_estimator_failures"`
	// Brackets is indexed by estimator bracket, youngest first.
	Brackets []Bracket `yaml:"brackets"`
}

// Default returns the documented defaults.
func Default() Policy {
	return Policy{
		LegalAge:             20,
		ConfidentAge:         25,
		SamplingInterval:     30 * time.Millisecond,
		SamplingTimeout:      60 * time.Second,
		LookupTimeout:        5 * time.Second,
		MaxEstimatorFailures: 10,
		Brackets:             DefaultBrackets(),
	}
}

// DefaultBrackets is the bracket table of the bundled age model.
func DefaultBrackets() []Bracket {
	return []Bracket{
		{Label: "0-2", RepresentativeAge: 16, Tier: TierLow},
		{Label: "4-6", RepresentativeAge: 16, Tier: TierLow},
		{Label: "8-12", RepresentativeAge: 16, Tier: TierLow},
		{Label: "15-20", RepresentativeAge: 16, Tier: TierLow},
		{Label: "25-32", RepresentativeAge: 28, Tier: TierMedium},
		{Label: "38-43", RepresentativeAge: 40, Tier: TierMedium},
		{Label: "48-53", RepresentativeAge: 50, Tier: TierMedium},
		{Label: "60-100", RepresentativeAge: 70, Tier: TierHigh},
	}
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	var errs []error
	if p.LegalAge < 0 {
		errs = append(errs, errors.New("legal_age must not be negative"))
	}
	if p.ConfidentAge < p.LegalAge {
		errs = append(errs, fmt.Errorf("confident_age (%d) must be >= legal_age (%d)", p.ConfidentAge, p.LegalAge))
	}
	if p.SamplingInterval <= 0 {
		errs = append(errs, errors.New("sampling_interval must be positive"))
	}
	if p.SamplingTimeout < 0 {
		errs = append(errs, errors.New("sampling_timeout must not be negative"))
	}
	if p.LookupTimeout <= 0 {
		errs = append(errs, errors.New("lookup_timeout must be positive"))
	}
	if p.MaxEstimatorFailures <= 0 {
		errs = append(errs, errors.New("max_estimator_failures must be positive"))
	}
	if len(p.Brackets) != BracketCount {
		errs = append(errs, fmt.Errorf("brackets must have exactly %d entries, got %d", BracketCount, len(p.Brackets)))
	}
	for i, b := range p.Brackets {
		switch b.Tier {
		case TierLow, TierMedium, TierHigh:
		default:
			errs = append(errs, fmt.Errorf("bracket %d: unknown tier %q", i, b.Tier))
		}
		if b.RepresentativeAge < 0 {
			errs = append(errs, fmt.Errorf("bracket %d: representative_age must not be negative", i))
		}
		if i > 0 && b.RepresentativeAge < p.Brackets[i-1].RepresentativeAge {
			errs = append(errs, fmt.Errorf("bracket %d: representative_age must not decrease", i))
		}
	}
	return errors.Join(errs...)
}

// Bracket returns the table entry for an estimator bracket index.
func (p Policy) Bracket(index int) (Bracket, bool) {
	if index < 0 || index >= len(p.Brackets) {
		return Bracket{}, false
	}
	return p.Brackets[index], true
}

// Band is where a representative age falls relative to the thresholds.
type Band int

const (
	// BandUnderage is age < LegalAge.
	BandUnderage Band = iota
	// BandUncertain is LegalAge <= age < ConfidentAge.
	BandUncertain
	// BandConfident is age >= ConfidentAge.
	BandConfident
)

func (b Band) String() string {
	switch b {
	case BandUnderage:
		return "underage"
	case BandUncertain:
		return "uncertain"
	case BandConfident:
		return "confident"
	default:
		return "unknown"
	}
}

// Classify places an age in its band. The uncertain band is half-open.
func (p Policy) Classify(age int) Band {
	switch {
	case age >= p.ConfidentAge:
		return BandConfident
	case age >= p.LegalAge:
		return BandUncertain
	default:
		return BandUnderage
	}
}

// IsLegal reports whether a document age may purchase restricted items.
func (p Policy) IsLegal(age int) bool {
	return age >= p.LegalAge
}

// LoadFile overlays a YAML policy file on base. Fields absent from the file
// keep their base value. The result is validated.
func LoadFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data, base)
}

// Parse is LoadFile on bytes.
func Parse(data []byte, base Policy) (Policy, error) {
	p := base
	p.Brackets = append([]Bracket(nil), base.Brackets...)
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}
