package skills

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Probe supplies the environment lookups the eligibility filter needs. It
// is pure: lookups never mutate the environment, and the filter is
// deterministic given identical probe responses.
type Probe struct {
	// OS is the current platform id (darwin, linux, windows).
	OS string

	// LookPath reports whether a binary resolves on PATH.
	LookPath func(name string) bool

	// LookupEnv returns an environment variable and whether it is set.
	LookupEnv func(name string) (string, bool)

	// Overrides provides per-skill configuration.
	Overrides map[string]*Config

	// BundledAllowlist restricts which bundled skills are usable. Nil
	// means all bundled skills are allowed.
	BundledAllowlist map[string]bool
}

// NewProbe creates a probe backed by the real host environment, with
// memoised PATH and env lookups.
func NewProbe(overrides map[string]*Config, bundledAllowlist []string) *Probe {
	bins := make(map[string]bool)
	envs := make(map[string]envEntry)

	var allow map[string]bool
	if bundledAllowlist != nil {
		allow = make(map[string]bool, len(bundledAllowlist))
		for _, name := range bundledAllowlist {
			allow[name] = true
		}
	}

	return &Probe{
		OS: runtime.GOOS,
		LookPath: func(name string) bool {
			if got, ok := bins[name]; ok {
				return got
			}
			_, err := exec.LookPath(name)
			bins[name] = err == nil
			return bins[name]
		},
		LookupEnv: func(name string) (string, bool) {
			if got, ok := envs[name]; ok {
				return got.value, got.set
			}
			value, set := os.LookupEnv(name)
			envs[name] = envEntry{value: value, set: set}
			return value, set
		},
		Overrides:        overrides,
		BundledAllowlist: allow,
	}
}

type envEntry struct {
	value string
	set   bool
}

// Eligibility is the result of an eligibility check.
type Eligibility struct {
	Eligible bool
	Reason   string
}

// CheckEligibility evaluates the skill against the probe. Checks run in a
// fixed order and the first failure short-circuits: always, disabled by
// config, bundled allowlist, OS, required bins, any-of bins, required env.
func (s *Skill) CheckEligibility(probe *Probe) Eligibility {
	meta := s.Metadata

	if meta != nil && meta.Always {
		return Eligibility{Eligible: true, Reason: "always enabled"}
	}

	if !s.IsEnabled(probe.Overrides) {
		return Eligibility{Eligible: false, Reason: "disabled by config"}
	}

	if s.Source == SourceBundled && probe.BundledAllowlist != nil && !probe.BundledAllowlist[s.Name] {
		return Eligibility{Eligible: false, Reason: "bundled skill not in allowlist"}
	}

	if meta == nil || meta.Requires == nil {
		return Eligibility{Eligible: true}
	}
	req := meta.Requires

	if len(req.OS) > 0 {
		found := false
		for _, platform := range req.OS {
			if platform == probe.OS {
				found = true
				break
			}
		}
		if !found {
			return Eligibility{
				Eligible: false,
				Reason:   fmt.Sprintf("requires OS %s, have %s", strings.Join(req.OS, "|"), probe.OS),
			}
		}
	}

	for _, bin := range req.Bins {
		if !probe.LookPath(bin) {
			return Eligibility{
				Eligible: false,
				Reason:   "missing required binary: " + bin,
			}
		}
	}

	if len(req.AnyBins) > 0 {
		found := false
		for _, bin := range req.AnyBins {
			if probe.LookPath(bin) {
				found = true
				break
			}
		}
		if !found {
			return Eligibility{
				Eligible: false,
				Reason:   "requires one of: " + strings.Join(req.AnyBins, ", "),
			}
		}
	}

	for _, env := range req.Env {
		if value, ok := probe.LookupEnv(env); !ok || value == "" {
			return Eligibility{
				Eligible: false,
				Reason:   "missing environment variable: " + env,
			}
		}
	}

	return Eligibility{Eligible: true}
}

// FilterEligible filters skills to those eligible under the probe,
// preserving order.
func FilterEligible(skills []*Skill, probe *Probe) []*Skill {
	var eligible []*Skill
	for _, skill := range skills {
		if skill.CheckEligibility(probe).Eligible {
			eligible = append(eligible, skill)
		}
	}
	return eligible
}

// IneligibleReasons maps each ineligible skill name to its rejection reason.
func IneligibleReasons(skills []*Skill, probe *Probe) map[string]string {
	reasons := make(map[string]string)
	for _, skill := range skills {
		result := skill.CheckEligibility(probe)
		if !result.Eligible {
			reasons[skill.Name] = result.Reason
		}
	}
	return reasons
}
