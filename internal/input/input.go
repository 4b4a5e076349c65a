// Package input turns per-tick button levels into press and release edges.
package input

// Action is a named boolean button sampled once per tick.
type Action struct {
	Name string
	down bool
	prev bool
}

func NewAction(name string) *Action {
	return &Action{Name: name}
}

// Set records this tick's level. Call exactly once per tick.
func (a *Action) Set(down bool) {
	a.prev = a.down
	a.down = down
}

func (a *Action) Held() bool     { return a.down }
func (a *Action) Pressed() bool  { return a.down && !a.prev }
func (a *Action) Released() bool { return !a.down && a.prev }

// Snapshot is the raw button levels for one tick.
type Snapshot struct {
	Grab       bool `yaml:"grab"`
	Trigger    bool `yaml:"trigger"`
	ToggleMode bool `yaml:"toggle_mode"`
}

// Actions is the set of actions the interaction core consumes.
type Actions struct {
	Grab       *Action
	Trigger    *Action
	ToggleMode *Action
}

func NewActions() *Actions {
	return &Actions{
		Grab:       NewAction("grab"),
		Trigger:    NewAction("trigger"),
		ToggleMode: NewAction("toggleMode"),
	}
}

// Update samples every action from s.
func (a *Actions) Update(s Snapshot) {
	a.Grab.Set(s.Grab)
	a.Trigger.Set(s.Trigger)
	a.ToggleMode.Set(s.ToggleMode)
}
