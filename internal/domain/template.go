package domain

// KV is one ordered key/value option. Scheduler options and environment
// variables keep their declaration order so realized scripts are
// byte-for-byte reproducible.
type KV struct {
	Key   string
	Value string
}

// Template is the immutable declarative description of one executable under
// test: how to build it, how to run it, and what to ask the batch scheduler
// for. Templates are owned by the test-plan source and never mutated by the
// engine; instantiation overrides are applied onto copies at realization time.
type Template struct {
	SchedulerOptions []KV
	ModuleLoads      []string
	Environment      []KV
	Directory        string
	BuildCommands    []string
	RunCommand       string
	Args             string
	PostCommands     []string
}

// Clone returns a deep copy safe to mutate during realization.
func (t Template) Clone() Template {
	out := t
	out.SchedulerOptions = append([]KV(nil), t.SchedulerOptions...)
	out.ModuleLoads = append([]string(nil), t.ModuleLoads...)
	out.Environment = append([]KV(nil), t.Environment...)
	out.BuildCommands = append([]string(nil), t.BuildCommands...)
	out.PostCommands = append([]string(nil), t.PostCommands...)
	return out
}
