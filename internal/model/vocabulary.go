package model

import "strings"

// Vocabulary holds the open label sets of the logbook.  They are plain
// configuration, validated at the boundary of every lifecycle operation.
type Vocabulary struct {
	Shifts          []string
	InstallReasons  []string
	Roles           []string
	Positions       []string
	PositionRoles   []string // roles that require a position on install
	NewTrialReasons []string // install reasons that stay on the INSTALL event
}

// DefaultVocabulary is the label set used on the can line.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Shifts: []string{"Tooling room", "A", "B", "C", "D"},
		InstallReasons: []string{
			"Top wall variation", "Top wall oversize", "Short trim", "Sensor short can",
			"Sugar scoop", "Short can", "Die scratches", "Die worn", "Oval can", "Progression",
			"Mid wall below specification", "Progression mark horizontal",
			"Progression mark vertical", "Top wall undersize", "Defective die", "Die damage",
			"Trial", "No reason", "Pin hole", "Pick up", "Shadows", "Roll back",
			"Metal exposure", "Chime smile", "Dome depth", "Wrinkled domes", "Slivers",
			"Burrs", "Uneven trim", "Trimmer jams", "Split flanges", "Scheduled change", "New",
		},
		Roles:           []string{"IRONING", "REDRAW DIE", "REDRAW SLEEVE", "PUNCH", "NOSE", "DOME PLUG", "CLAMP RING"},
		Positions:       []string{"#1", "#2", "#3"},
		PositionRoles:   []string{"IRONING"},
		NewTrialReasons: []string{"NEW", "TRIAL"},
	}
}

// Shift returns the canonical spelling of a shift label.
func (v Vocabulary) Shift(s string) (string, bool) { return lookup(v.Shifts, s) }

// InstallReason returns the canonical spelling of an install reason.
func (v Vocabulary) InstallReason(s string) (string, bool) { return lookup(v.InstallReasons, s) }

// Role returns the canonical spelling of a known role and the trimmed
// input for any other; roles are an open set.
func (v Vocabulary) Role(s string) string {
	if known, ok := lookup(v.Roles, s); ok {
		return known
	}
	return strings.TrimSpace(s)
}

// RequiresPosition reports whether installs for role must name a position.
func (v Vocabulary) RequiresPosition(role string) bool {
	_, ok := lookup(v.PositionRoles, role)
	return ok
}

// IsNewOrTrial reports whether an install reason describes a fresh or
// trial tool rather than a problem with the outgoing one.
func (v Vocabulary) IsNewOrTrial(reason string) bool {
	_, ok := lookup(v.NewTrialReasons, reason)
	return ok
}

func lookup(set []string, s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, known := range set {
		if strings.EqualFold(known, s) {
			return known, true
		}
	}
	return "", false
}
