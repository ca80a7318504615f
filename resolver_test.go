package boxon

import "testing"

func TestResolverLongestMatchFirst(t *testing.T) {
	r := NewResolver()
	short := &Template{}
	long := &Template{}
	if err := r.Register(Header{Start: []byte("AB")}, short); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Header{Start: []byte("ABC")}, long); err != nil {
		t.Fatal(err)
	}

	tmpl, n, ok := r.MatchAt([]byte("ABCD"))
	if !ok {
		t.Fatal("expected a match")
	}
	if tmpl != long || n != 3 {
		t.Errorf("expected longest match (ABC, len 3), got len %d", n)
	}
}

func TestResolverLexicographicTieBreak(t *testing.T) {
	r := NewResolver()
	b := &Template{}
	a := &Template{}
	if err := r.Register(Header{Start: []byte("BB")}, b); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Header{Start: []byte("AA")}, a); err != nil {
		t.Fatal(err)
	}
	if r.entries[0].tmpl != a {
		t.Error("expected AA ordered before BB among equal-length headers")
	}

	tmpl, _, ok := r.MatchAt([]byte("AA"))
	if !ok || tmpl != a {
		t.Fatal("expected AA to match its own template")
	}
	tmpl, _, ok = r.MatchAt([]byte("BB"))
	if !ok || tmpl != b {
		t.Fatal("expected BB to match its own template")
	}
}

func TestResolverRejectsEmptyMagicAndDuplicates(t *testing.T) {
	r := NewResolver()
	if err := r.Register(Header{Start: nil}, &Template{}); err == nil {
		t.Fatal("expected error for empty magic")
	}
	if err := r.Register(Header{Start: []byte("X")}, &Template{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Header{Start: []byte("X")}, &Template{}); err == nil {
		t.Fatal("expected error for duplicate header")
	}
}

func TestResolverFindNextFrameStart(t *testing.T) {
	r := NewResolver()
	if err := r.Register(Header{Start: []byte("HDR")}, &Template{}); err != nil {
		t.Fatal(err)
	}
	buf := []byte{0x00, 0x01, 'H', 'D', 'R', 'x'}
	idx := r.FindNextFrameStart(buf)
	if idx != 2 {
		t.Errorf("got %d, want 2", idx)
	}
}
