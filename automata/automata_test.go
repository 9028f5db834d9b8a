package automata

import (
	"testing"

	"github.com/industrialgo/cipstack/dtree"
)

// buildABStar builds a machine accepting "a" then zero or more "b"s:
// q0 -a-> q1(terminal) -b-> q1
func buildABStar(greedy bool) *DFA {
	q0 := NewState("q0")
	q1 := NewState("q1").Terminate()
	q0.On('a', q1)
	q1.On('b', q1)
	return &DFA{Name: "abstar", Start: q0, Greedy: greedy, Terminal: true}
}

func TestGreedyConsumesLongestPrefix(t *testing.T) {
	dfa := buildABStar(true)
	src := NewByteSource([]byte("abbbbc"))
	r := NewRun(dfa, nil)
	ok, err := r.Execute(dtree.New(), src)
	if err != nil || !ok {
		t.Fatalf("expected accept, got ok=%v err=%v", ok, err)
	}
	if src.Pos() != 5 {
		t.Fatalf("expected to consume 'abbbb' (5 bytes), consumed %d", src.Pos())
	}
	next, has := src.Peek()
	if !has || next != Symbol('c') {
		t.Fatalf("expected 'c' left over, got %v %v", next, has)
	}
}

func TestNonGreedyConsumesShortestPrefix(t *testing.T) {
	dfa := buildABStar(false)
	src := NewByteSource([]byte("abbbbc"))
	r := NewRun(dfa, nil)
	ok, err := r.Execute(dtree.New(), src)
	if err != nil || !ok {
		t.Fatalf("expected accept, got ok=%v err=%v", ok, err)
	}
	if src.Pos() != 1 {
		t.Fatalf("expected to stop after 'a' (1 byte), consumed %d", src.Pos())
	}
}

func TestUnmatchedSymbolLeavesPositionUnchanged(t *testing.T) {
	dfa := buildABStar(true)
	src := NewByteSource([]byte("zzz"))
	r := NewRun(dfa, nil)
	ok, err := r.Execute(dtree.New(), src)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected rejection")
	}
	if src.Pos() != 0 {
		t.Fatalf("expected source untouched, pos=%d", src.Pos())
	}
}

func TestEnclosingFallback(t *testing.T) {
	// Outer machine: q0 -x-> q1(terminal) -y-> q2(terminal). Inner machine
	// accepts a single 'a'. When the inner machine (running nested inside
	// the outer) can't match 'x' or 'y', those symbols fall through to the
	// outer run, which advances; the inner machine is then re-entered.
	oq0 := NewState("oq0")
	oq1 := NewState("oq1").Terminate()
	oq2 := NewState("oq2").Terminate()
	oq0.On('x', oq1)
	oq1.On('y', oq2)
	outer := &DFA{Name: "outer", Start: oq0, Greedy: true, Terminal: true}

	iq0 := NewState("iq0")
	iq1 := NewState("iq1").Terminate()
	iq0.On('a', iq1)
	inner := &DFA{Name: "inner", Start: iq0, Greedy: true, Terminal: true}

	outerRun := NewRun(outer, nil)
	src := NewByteSource([]byte("xay"))

	// Drive the outer run's first symbol directly (simulating a composed
	// grammar that starts with the outer machine).
	sym, _ := src.Next()
	target, _, ok := outerRun.step(sym)
	if !ok {
		t.Fatal("outer machine should accept 'x'")
	}
	outerRun.cur = target
	if !outerRun.cur.Terminal {
		t.Fatal("expected outer to be terminal after 'x'")
	}

	innerRun := NewRun(inner, outerRun)
	tr := dtree.New()
	ok, err := innerRun.Execute(tr, src)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected inner run to end in an accepting composite state")
	}
	if src.Pos() != 3 {
		t.Fatalf("expected all 3 bytes consumed via delegation, got %d", src.Pos())
	}
}

func TestRegexIdempotent(t *testing.T) {
	cases := []struct {
		pattern string
		accept  []string
		reject  []string
	}{
		{"ab*c", []string{"ac", "abc", "abbbc"}, []string{"a", "abx"}},
		{"a|b", []string{"a", "b"}, []string{"c", "ab"}},
		{"[a-c]+", []string{"a", "abc", "cba"}, []string{"d", ""}},
		{"colou?r", []string{"color", "colour"}, []string{"colouur"}},
	}
	for _, c := range cases {
		dfa, err := Regex("t", c.pattern)
		if err != nil {
			t.Fatalf("compile %q: %v", c.pattern, err)
		}
		for _, s := range c.accept {
			ok1, err := Match(dfa, NewRuneSource(s))
			if err != nil {
				t.Fatal(err)
			}
			ok2, err := Match(dfa, NewRuneSource(s))
			if err != nil {
				t.Fatal(err)
			}
			if ok1 != ok2 {
				t.Fatalf("compile(%q).matches(%q) not idempotent", c.pattern, s)
			}
			if !ok1 {
				t.Fatalf("expected pattern %q to accept %q", c.pattern, s)
			}
		}
		for _, s := range c.reject {
			ok, _ := Match(dfa, NewRuneSource(s))
			if ok {
				t.Fatalf("expected pattern %q to reject %q", c.pattern, s)
			}
		}
	}
}
