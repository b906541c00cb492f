package domain

import (
	"sort"
	"strings"
)

const pathSeparator = "/"

// Path addresses a node of the hierarchical store. The empty path is the root.
type Path string

func NewPath(segments ...string) Path {
	var clean []string
	for _, s := range segments {
		for _, part := range strings.Split(s, pathSeparator) {
			if part = strings.TrimSpace(part); part != "" {
				clean = append(clean, part)
			}
		}
	}
	return Path(strings.Join(clean, pathSeparator))
}

func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p), pathSeparator)
}

func (p Path) IsRoot() bool { return p == "" }

func (p Path) Child(segments ...string) Path {
	return NewPath(append([]string{string(p)}, segments...)...)
}

func (p Path) Parent() Path {
	segments := p.Segments()
	if len(segments) <= 1 {
		return ""
	}
	return NewPath(segments[:len(segments)-1]...)
}

// Ancestors lists every strict ancestor, root excluded, closest last.
func (p Path) Ancestors() []Path {
	segments := p.Segments()
	var res []Path
	for i := 1; i < len(segments); i++ {
		res = append(res, NewPath(segments[:i]...))
	}
	return res
}

func (p Path) String() string { return string(p) }

type Origin string

const (
	OriginTemplate   Origin = "template"
	OriginDiscovered Origin = "discovered"
)

// PathCandidate is a hypothesized storage location for a conversation.
// No candidate is authoritative, all of them are subscribed.
type PathCandidate struct {
	Path   Path
	Origin Origin
}

type PathSet map[Path]struct{}

func NewPathSet(paths ...Path) PathSet {
	set := make(PathSet, len(paths))
	set.Add(paths...)
	return set
}

func (s PathSet) Add(paths ...Path) {
	for _, p := range paths {
		s[p] = struct{}{}
	}
}

func (s PathSet) Contains(p Path) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the paths in lexical order.
func (s PathSet) Sorted() []Path {
	res := make([]Path, 0, len(s))
	for p := range s {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
