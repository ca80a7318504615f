package boxon

import (
	"bytes"
	"sort"
)

// Resolver indexes registered root templates by their header's magic start
// bytes (spec.md §7 "Template resolution"), matching the longest candidate
// header first and breaking remaining ties lexicographically so resolution
// is deterministic regardless of registration order.
type Resolver struct {
	entries []resolverEntry
}

type resolverEntry struct {
	header Header
	tmpl   *Template
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Register adds tmpl under h, rejecting an empty magic or a header Start
// that collides with one already registered.
func (r *Resolver) Register(h Header, tmpl *Template) error {
	if len(h.Start) == 0 {
		return newErr(KindEmptyMagic, "header start must not be empty")
	}
	for _, e := range r.entries {
		if bytes.Equal(e.header.Start, h.Start) {
			return newErr(KindDuplicateHeader, string(h.Start))
		}
	}
	r.entries = append(r.entries, resolverEntry{header: h, tmpl: tmpl})
	sort.SliceStable(r.entries, func(i, j int) bool {
		li, lj := len(r.entries[i].header.Start), len(r.entries[j].header.Start)
		if li != lj {
			return li > lj
		}
		return string(r.entries[i].header.Start) < string(r.entries[j].header.Start)
	})
	return nil
}

// MatchAt reports the template whose header Start is a prefix of buf, if
// any, and the number of bytes that header consumes.
func (r *Resolver) MatchAt(buf []byte) (*Template, int, bool) {
	for _, e := range r.entries {
		n := len(e.header.Start)
		if n <= len(buf) && bytes.Equal(buf[:n], e.header.Start) {
			return e.tmpl, n, true
		}
	}
	return nil, 0, false
}

// FindNextFrameStart scans buf, starting one byte in, for the next offset
// at which a registered header matches - used to resynchronize after a
// frame that failed to parse (spec.md §7 "Frame recovery").
func (r *Resolver) FindNextFrameStart(buf []byte) int {
	for i := 1; i < len(buf); i++ {
		if _, _, ok := r.MatchAt(buf[i:]); ok {
			return i
		}
	}
	return -1
}

// maxHeaderLen returns the longest registered header Start, used to size
// the peek window MatchAt needs.
func (r *Resolver) maxHeaderLen() int {
	m := 0
	for _, e := range r.entries {
		if len(e.header.Start) > m {
			m = len(e.header.Start)
		}
	}
	return m
}
