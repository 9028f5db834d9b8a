package automata

import "github.com/industrialgo/cipstack/dtree"

// Action runs after a transition lands on a state, with the chance to
// record parsed data into the shared tree at the DFA's context path.
type Action func(t *dtree.Tree, path string, sym Symbol) error

// State is one node of a machine: a name, a terminal flag, labeled
// transitions keyed by input symbol, a default ("True" in the spec's terms)
// wildcard transition tried when no symbol-keyed transition matches, and an
// epsilon transition list tried when neither of those applies.
type State struct {
	Name      string
	Terminal  bool
	Consuming bool // false for a state entered without eating the input symbol

	action    Action
	translate func(Symbol) Symbol
	edges     map[Symbol]*State
	epsilon   []*State
	def       *State
}

// NewState creates an input-consuming, non-terminal state.
func NewState(name string) *State {
	return &State{
		Name:      name,
		Consuming: true,
		edges:     make(map[Symbol]*State),
	}
}

// On adds a labeled transition to target and returns the receiver for
// chaining, mirroring how the teacher's parser tables are built up.
func (s *State) On(sym Symbol, target *State) *State {
	s.edges[sym] = target
	return s
}

// Epsilon adds a transition attempted without consuming input.
func (s *State) Epsilon(target *State) *State {
	s.epsilon = append(s.epsilon, target)
	return s
}

// Default sets the wildcard transition matching any symbol not otherwise
// bound; it corresponds to the spec's "True" default key.
func (s *State) Default(target *State) *State {
	s.def = target
	return s
}

// Terminate marks the state as accepting.
func (s *State) Terminate() *State {
	s.Terminal = true
	return s
}

// Do attaches the post-transition action.
func (s *State) Do(a Action) *State {
	s.action = a
	return s
}

// Translate installs an alphabet-translation function applied to the input
// symbol before matching transitions (e.g. case folding, byte-to-segment
// mapping).
func (s *State) Translate(f func(Symbol) Symbol) *State {
	s.translate = f
	return s
}

// match returns the transition target for sym, trying an exact edge, then a
// translated edge, then the default wildcard. ok is false if none applies.
func (s *State) match(sym Symbol) (target *State, ok bool) {
	if t, found := s.edges[sym]; found {
		return t, true
	}
	if s.translate != nil {
		if t, found := s.edges[s.translate(sym)]; found {
			return t, true
		}
	}
	if s.def != nil {
		return s.def, true
	}
	return nil, false
}
