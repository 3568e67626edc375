package modcfg

import "strings"

// Module is one named group of path prefixes.
type Module struct {
	Name     string
	Prefixes []string
}

func (m Module) matches(path string) bool {
	for _, p := range m.Prefixes {
		if p == path || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Overlay is the in-memory modules image: an ordered module list plus a
// display separator. Insertion order is preserved so a
// user-edited file round-trips with minimal churn.
type Overlay struct {
	Separator string
	Modules   []Module
}

// NewOverlay returns an empty overlay with the default separator.
func NewOverlay() *Overlay { return &Overlay{Separator: "/"} }

// Status is the outcome of a mutation against the in-memory image.
type Status int

const (
	Unmodified Status = iota
	NeedsUpdate
	Duplicate
	NoModule
)

func (s Status) String() string {
	switch s {
	case Unmodified:
		return "unmodified"
	case NeedsUpdate:
		return "needs_update"
	case Duplicate:
		return "duplicate"
	case NoModule:
		return "no_module"
	default:
		return "unknown"
	}
}

func (ov *Overlay) indexOf(name string) int {
	for i, m := range ov.Modules {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// SetSeparator updates the display separator.
func (ov *Overlay) SetSeparator(sep string) Status {
	if ov.Separator == sep {
		return Unmodified
	}
	ov.Separator = sep
	return NeedsUpdate
}

// Add appends prefix to module name, creating the module if it doesn't
// exist yet. Adding a prefix already present in that module is a Duplicate.
func (ov *Overlay) Add(name, prefix string) Status {
	i := ov.indexOf(name)
	if i < 0 {
		ov.Modules = append(ov.Modules, Module{Name: name, Prefixes: []string{prefix}})
		return NeedsUpdate
	}
	for _, p := range ov.Modules[i].Prefixes {
		if p == prefix {
			return Duplicate
		}
	}
	ov.Modules[i].Prefixes = append(ov.Modules[i].Prefixes, prefix)
	return NeedsUpdate
}

// Remove drops prefix from module name. If the module ends up with no
// prefixes left, it is removed from the list entirely. Removing a
// nonexistent module/prefix pair is NoModule.
func (ov *Overlay) Remove(name, prefix string) Status {
	i := ov.indexOf(name)
	if i < 0 {
		return NoModule
	}
	prefixes := ov.Modules[i].Prefixes
	for j, p := range prefixes {
		if p != prefix {
			continue
		}
		ov.Modules[i].Prefixes = append(prefixes[:j], prefixes[j+1:]...)
		if len(ov.Modules[i].Prefixes) == 0 {
			ov.Modules = append(ov.Modules[:i], ov.Modules[i+1:]...)
		}
		return NeedsUpdate
	}
	return NoModule
}

// Matches returns the names of every module whose prefix set matches
// path; a path may belong to several modules.
func (ov *Overlay) Matches(path string) []string {
	var names []string
	for _, m := range ov.Modules {
		if m.matches(path) {
			names = append(names, m.Name)
		}
	}
	return names
}

// UnassignedName labels the implicit bucket holding paths matched by no
// module.
const UnassignedName = "unassigned"

// View is one module's slice of a filtered path list: the indexes into the
// input that belong to that module, in input order.
type View struct {
	Name    string
	Indexes []int
}

// Filter groups paths into per-module views, one per module in overlay
// order, followed by the implicit unassigned view for paths no module
// matched. A path may appear in several module views but in
// each at most once; modules matching nothing still yield an (empty) view.
func (ov *Overlay) Filter(paths []string) []View {
	views := make([]View, len(ov.Modules), len(ov.Modules)+1)
	for i, m := range ov.Modules {
		views[i].Name = m.Name
	}
	unassigned := View{Name: UnassignedName}
	for i, path := range paths {
		matched := false
		for j, m := range ov.Modules {
			if m.matches(path) {
				views[j].Indexes = append(views[j].Indexes, i)
				matched = true
			}
		}
		if !matched {
			unassigned.Indexes = append(unassigned.Indexes, i)
		}
	}
	return append(views, unassigned)
}

var moduleSepPath = []string{"module", "sep"}
var modulePath = []string{"module"}

// FromConfig extracts the modules overlay recorded in cfg: the
// "module.sep" global key and the "module.<name>.path" multivar.
func FromConfig(cfg *Config) *Overlay {
	ov := NewOverlay()
	if v, ok := cfg.Value(moduleSepPath, "", "value"); ok {
		ov.Separator = v
	}
	for _, h := range cfg.Sections() {
		if len(h.Path) == 1 && h.Path[0] == "module" && h.HasSub {
			paths := cfg.Values(modulePath, h.Sub, "path")
			ov.Modules = append(ov.Modules, Module{Name: h.Sub, Prefixes: append([]string(nil), paths...)})
		}
	}
	return ov
}

// ToConfig writes ov into cfg, first deleting any existing module.sep
// and module.<name>.path sections, then writing the current image back.
func (ov *Overlay) ToConfig(cfg *Config) {
	cfg.RemoveSection(moduleSepPath, "")
	for _, h := range cfg.Sections() {
		if len(h.Path) == 1 && h.Path[0] == "module" && h.HasSub {
			cfg.RemoveSection(h.Path, h.Sub)
		}
	}
	if ov.Separator != "" {
		cfg.SetValue(moduleSepPath, "", "value", ov.Separator)
	}
	for _, m := range ov.Modules {
		for _, p := range m.Prefixes {
			cfg.AddValue(modulePath, m.Name, "path", p)
		}
	}
}

// Equal reports whether ov and other hold the same separator and modules
// (ignoring nothing: order matters, matching the round-trip property).
func (ov *Overlay) Equal(other *Overlay) bool {
	if ov.Separator != other.Separator {
		return false
	}
	if len(ov.Modules) != len(other.Modules) {
		return false
	}
	for i := range ov.Modules {
		a, b := ov.Modules[i], other.Modules[i]
		if a.Name != b.Name || len(a.Prefixes) != len(b.Prefixes) {
			return false
		}
		for j := range a.Prefixes {
			if a.Prefixes[j] != b.Prefixes[j] {
				return false
			}
		}
	}
	return true
}
