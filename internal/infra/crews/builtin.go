package crews

// builtins maps crew names to their factories. Factories stay heterogeneous
// on purpose; Resolve shims over the shapes.
var builtins = map[string]any{
	"content_creation": NewContentCreationCrew,
	"research":         NewResearchCrew,
}

// RegisterBuiltins registers the built-in crews. A non-empty enabled list
// restricts registration to the named crews; unknown names are ignored.
func RegisterBuiltins(r *Registry, enabled []string) {
	allow := func(string) bool { return true }
	if len(enabled) > 0 {
		set := make(map[string]struct{}, len(enabled))
		for _, name := range enabled {
			set[name] = struct{}{}
		}
		allow = func(name string) bool {
			_, ok := set[name]
			return ok
		}
	}
	for name, factory := range builtins {
		if allow(name) {
			r.Register(name, factory)
		}
	}
}
