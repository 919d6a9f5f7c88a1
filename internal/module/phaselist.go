package module

import "github.com/kdebuilder/kdebuilder"

// PhaseList is an ordered subset of {update, build, test, install,
// uninstall}. Order is preserved because callers rely on it when
// printing "what would run".
type PhaseList struct {
	phases []kdebuilder.Phase
}

// NewPhaseList returns the default phase list: update, build, test, install.
func NewPhaseList() *PhaseList {
	return &PhaseList{phases: kdebuilder.DefaultPhases()}
}

// NewPhaseListFrom builds a PhaseList from an explicit ordered set.
func NewPhaseListFrom(phases ...kdebuilder.Phase) *PhaseList {
	return &PhaseList{phases: append([]kdebuilder.Phase(nil), phases...)}
}

func (p *PhaseList) Has(ph kdebuilder.Phase) bool {
	for _, x := range p.phases {
		if x == ph {
			return true
		}
	}
	return false
}

func (p *PhaseList) List() []kdebuilder.Phase {
	return append([]kdebuilder.Phase(nil), p.phases...)
}

func (p *PhaseList) Remove(ph kdebuilder.Phase) {
	out := p.phases[:0]
	for _, x := range p.phases {
		if x != ph {
			out = append(out, x)
		}
	}
	p.phases = out
}

func (p *PhaseList) Add(ph kdebuilder.Phase) {
	if p.Has(ph) {
		return
	}
	p.phases = append(p.phases, ph)
}

// Filter restricts the phase list to only the phases present in allowed
// (used to enforce the invariant that a module's phases are a subset of
// the context's phases after cmdline filtering).
func (p *PhaseList) Filter(allowed *PhaseList) {
	out := p.phases[:0]
	for _, x := range p.phases {
		if allowed.Has(x) {
			out = append(out, x)
		}
	}
	p.phases = out
}

// Clone returns an independent copy.
func (p *PhaseList) Clone() *PhaseList {
	return &PhaseList{phases: append([]kdebuilder.Phase(nil), p.phases...)}
}

// ApplyConvenienceKey mutates the phase list in response to one of
// the convenience keys (no-src, no-install, ..., filter-out-phases).
// value is the option's raw string form (for filter-out-phases, a
// space-separated phase list; for the rest, a boolean-ish string).
func (p *PhaseList) ApplyConvenienceKey(key, value string) {
	truthy := value == "" || value == "true" || value == "1"
	switch key {
	case "no-src":
		if truthy {
			p.Remove(kdebuilder.PhaseUpdate)
		}
	case "no-build":
		if truthy {
			p.Remove(kdebuilder.PhaseBuild)
		}
	case "no-install":
		if truthy {
			p.Remove(kdebuilder.PhaseInstall)
		}
	case "no-tests":
		if truthy {
			p.Remove(kdebuilder.PhaseTest)
		}
	case "uninstall":
		if truthy {
			p.phases = []kdebuilder.Phase{kdebuilder.PhaseUninstall}
		}
	case "build-only":
		if truthy {
			p.phases = []kdebuilder.Phase{kdebuilder.PhaseBuild}
		}
	case "install-only":
		if truthy {
			p.phases = []kdebuilder.Phase{kdebuilder.PhaseInstall}
		}
	case "filter-out-phases":
		for _, ph := range splitPhases(value) {
			p.Remove(ph)
		}
	}
}

func splitPhases(value string) []kdebuilder.Phase {
	var out []kdebuilder.Phase
	cur := ""
	flush := func() {
		if cur != "" {
			out = append(out, kdebuilder.Phase(cur))
			cur = ""
		}
	}
	for _, r := range value {
		if r == ' ' || r == '\t' {
			flush()
			continue
		}
		cur += string(r)
	}
	flush()
	return out
}
