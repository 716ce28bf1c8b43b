package config

import (
	"strings"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

// LoadVocabulary returns the logbook label sets.  Each list may be
// replaced with a comma-separated environment variable.
func LoadVocabulary() model.Vocabulary {
	v := model.DefaultVocabulary()
	v.Shifts = envList("TOOLING_SHIFTS", v.Shifts)
	v.InstallReasons = envList("TOOLING_INSTALL_REASONS", v.InstallReasons)
	v.Roles = envList("TOOLING_ROLES", v.Roles)
	v.Positions = envList("TOOLING_POSITIONS", v.Positions)
	v.PositionRoles = envList("TOOLING_POSITION_ROLES", v.PositionRoles)
	v.NewTrialReasons = envList("TOOLING_NEW_TRIAL_REASONS", v.NewTrialReasons)
	return v
}

func envList(k string, d []string) []string {
	raw := envStr(k, "")
	if raw == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}
