package automata

import "github.com/industrialgo/cipstack/dtree"

// DFA wraps an initial state and the parameters that govern one grammar:
// where in the shared tree its actions record data, whether it consumes the
// longest or shortest accepted prefix, and whether it counts as terminal at
// all (a DFA built with terminal=false never satisfies "did this input
// match", regardless of its inner state, which is how compositions mark an
// inner sub-grammar as required-but-not-itself-an-accepting-point).
type DFA struct {
	Name     string
	Start    *State
	Context  string
	Greedy   bool
	Terminal bool
}

// New creates a non-greedy DFA rooted at start.
func New(name string, start *State) *DFA {
	return &DFA{Name: name, Start: start, Terminal: true}
}

// WithContext sets the sub-path actions write into.
func (d *DFA) WithContext(ctx string) *DFA { d.Context = ctx; return d }

// WithGreedy toggles greedy (longest-prefix) matching.
func (d *DFA) WithGreedy(g bool) *DFA { d.Greedy = g; return d }

// Run is one execution of a DFA against a Source, carrying the enclosing
// run (if any) consulted for epsilon fallback per §4.1's composition rule.
type Run struct {
	dfa    *DFA
	cur    *State
	parent *Run
	ctxTop string // fully-qualified context path (parent ctx joined with dfa.Context)
}

// NewRun begins an execution of dfa, optionally nested inside parent (an
// already-running enclosing DFA offered a symbol whenever the inner machine
// rejects it).
func NewRun(dfa *DFA, parent *Run) *Run {
	top := dfa.Context
	if parent != nil {
		top = dtree.Join(parent.ctxTop, dfa.Context)
	}
	return &Run{dfa: dfa, cur: dfa.Start, parent: parent, ctxTop: top}
}

// State returns the current inner state.
func (r *Run) State() *State { return r.cur }

// TerminalState reports whether the DFA's construction and its current
// inner state both agree the run has reached an accepting point.
func (r *Run) TerminalState() bool {
	return r.dfa.Terminal && r.cur.Terminal
}

// step attempts one transition (consuming or epsilon) for sym starting from
// state s, first within this run's own machine, then via epsilon closure,
// then — if nothing matches — by offering sym to the parent run. It
// returns the landing state, whether input was consumed, and whether any
// transition applied at all.
func (r *Run) step(sym Symbol) (target *State, consumed bool, ok bool) {
	if t, matched := r.cur.match(sym); matched {
		return t, t.Consuming, true
	}
	for _, eps := range r.cur.epsilon {
		if t, matched := eps.match(sym); matched {
			return t, t.Consuming, true
		}
	}
	if r.parent != nil {
		if t, consumedByParent, matched := r.parent.step(sym); matched {
			// The enclosing machine accepted the symbol; once it settles,
			// re-enter this inner machine via an implicit epsilon back to
			// its start state so composition continues to accept
			// L(outer)*L(inner) sequences.
			r.parent.cur = t
			return r.dfa.Start, consumedByParent, true
		}
	}
	return nil, false, false
}

// Execute drives the run to completion against src, applying actions into
// t as states are entered. It implements the greedy/non-greedy termination
// rules of §4.1 and the failure semantics of leaving the source position
// unchanged on an unmatched symbol.
//
// It returns true if the run ended in a state satisfying TerminalState.
func (r *Run) Execute(t *dtree.Tree, src Source) (bool, error) {
	for {
		if !r.dfa.Greedy && r.cur.Terminal {
			return true, nil
		}
		sym, has := src.Peek()
		if !has {
			return r.TerminalState(), nil
		}
		target, consumed, ok := r.step(sym)
		if !ok {
			// No transition anywhere in this machine or its ancestry:
			// leave the source untouched and let the caller branch.
			return r.TerminalState(), nil
		}
		if consumed {
			sym, _ = src.Next()
		}
		r.cur = target
		if r.cur.action != nil {
			if err := r.cur.action(t, r.ctxTop, sym); err != nil {
				return false, err
			}
		}
		if r.dfa.Greedy && r.cur.Terminal {
			// Stop at the first terminal state from which no further
			// transition is possible; otherwise keep consuming.
			next, hasNext := src.Peek()
			if !hasNext {
				return true, nil
			}
			// The probe must not commit: step advances an ancestor run that
			// accepts the symbol, so ancestor states are restored after it.
			var saved []*State
			for p := r.parent; p != nil; p = p.parent {
				saved = append(saved, p.cur)
			}
			_, _, canContinue := r.step(next)
			for i, p := 0, r.parent; p != nil; i, p = i+1, p.parent {
				p.cur = saved[i]
			}
			if !canContinue {
				return true, nil
			}
		}
	}
}

// Match runs dfa to completion over src with no parent and returns whether
// it accepted the input, without requiring a shared tree (useful for
// pure recognizers such as the regex-derived DFAs).
func Match(dfa *DFA, src Source) (bool, error) {
	r := NewRun(dfa, nil)
	scratch := dtree.New()
	ok, err := r.Execute(scratch, src)
	if err != nil || !ok {
		return false, err
	}
	_, rest := src.Peek()
	return !rest, nil
}
