package dyn

import (
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Interner deduplicates the struct, enum, variant and field names handed to
// targets, so that a long session over repeated schemas holds one copy of
// each. It is scoped to whoever creates it and is safe for concurrent use.
type Interner struct {
	strs  *xsync.Map[string, string]
	lists *xsync.Map[string, []string]
}

func NewInterner() *Interner {
	return &Interner{
		strs:  xsync.NewMap[string, string](),
		lists: xsync.NewMap[string, []string](),
	}
}

// String returns the canonical copy of s.
func (in *Interner) String(s string) string {
	v, _ := in.strs.LoadOrStore(s, strings.Clone(s))
	return v
}

// Strings returns the canonical copy of ss, keyed by content. The result
// must not be modified.
func (in *Interner) Strings(ss []string) []string {
	key := strconv.Itoa(len(ss)) + "\x00" + strings.Join(ss, "\x00")
	if v, ok := in.lists.Load(key); ok {
		return v
	}
	c := make([]string, len(ss))
	for i, s := range ss {
		c[i] = in.String(s)
	}
	v, _ := in.lists.LoadOrStore(key, c)
	return v
}

// Len is the number of distinct strings held.
func (in *Interner) Len() int { return in.strs.Size() }
