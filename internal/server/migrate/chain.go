// Package migrate evolves the relational schema along a linear chain of
// named revisions. Each revision names its predecessor; the chain is
// validated when it is built, and the engine walks it forward (upgrade) or
// backward (downgrade) one transaction per revision.
package migrate

import (
	"fmt"
	"strings"

	"github.com/judoassistant/tournament-sync/internal/common"
)

// None is the revision of an empty schema.
const None = ""

// Revision is a single schema change step.
type Revision struct {
	ID           string
	DownRevision string
	Description  string
	Upgrade      []Op
	Downgrade    []Op
	// Lossy explains what a downgrade may lose; empty when Downgrade is exact.
	Lossy string
}

// ChainErrorKind tags why a set of revisions does not form a single path.
type ChainErrorKind int

const (
	KindEmptyID ChainErrorKind = iota + 1
	KindDuplicate
	KindBranch
	KindMissingParent
	KindNoRoot
	KindCycle
)

func (k ChainErrorKind) String() string {
	switch k {
	case KindEmptyID:
		return "empty id"
	case KindDuplicate:
		return "duplicate revision"
	case KindBranch:
		return "branch"
	case KindMissingParent:
		return "missing parent"
	case KindNoRoot:
		return "no root"
	case KindCycle:
		return "cycle"
	default:
		return fmt.Sprintf("ChainErrorKind(%d)", int(k))
	}
}

// ChainError reports the first problem found while validating a chain.
// Revision is the offending revision; for KindBranch, Parent is the shared
// predecessor and Others the competing children.
type ChainError struct {
	Kind     ChainErrorKind
	Revision string
	Parent   string
	Others   []string
}

func (e *ChainError) Error() string {
	switch e.Kind {
	case KindEmptyID:
		return "migrate: revision with empty id"
	case KindDuplicate:
		return fmt.Sprintf("migrate: revision %s declared more than once", e.Revision)
	case KindBranch:
		return fmt.Sprintf("migrate: revisions %s share down_revision %s", strings.Join(e.Others, ", "), Display(e.Parent))
	case KindMissingParent:
		return fmt.Sprintf("migrate: revision %s has unknown down_revision %s", e.Revision, e.Parent)
	case KindNoRoot:
		return "migrate: no revision starts from an empty schema"
	case KindCycle:
		return fmt.Sprintf("migrate: revision %s is not reachable from an empty schema", e.Revision)
	default:
		return "migrate: invalid chain"
	}
}

func (e *ChainError) Unwrap() error {
	switch e.Kind {
	case KindMissingParent, KindNoRoot:
		return common.ErrRevisionNotFound
	default:
		return common.ErrAmbiguousChain
	}
}

// Chain is a validated, linear sequence of revisions from None to head.
type Chain struct {
	revisions []Revision
	index     map[string]int
}

// NewChain validates revs and orders them root first. revs may be given in
// any order; validation is deterministic in the given order.
func NewChain(revs ...Revision) (*Chain, error) {
	byID := make(map[string]Revision, len(revs))
	children := make(map[string][]string, len(revs))

	for _, r := range revs {
		if r.ID == "" {
			return nil, &ChainError{Kind: KindEmptyID}
		}
		if _, ok := byID[r.ID]; ok {
			return nil, &ChainError{Kind: KindDuplicate, Revision: r.ID}
		}
		byID[r.ID] = r
		children[r.DownRevision] = append(children[r.DownRevision], r.ID)
	}

	for _, r := range revs {
		if r.DownRevision != None {
			if _, ok := byID[r.DownRevision]; !ok {
				return nil, &ChainError{Kind: KindMissingParent, Revision: r.ID, Parent: r.DownRevision}
			}
		}
		if kids := children[r.DownRevision]; len(kids) > 1 {
			return nil, &ChainError{Kind: KindBranch, Revision: kids[1], Parent: r.DownRevision, Others: kids}
		}
	}

	if len(children[None]) == 0 {
		return nil, &ChainError{Kind: KindNoRoot}
	}

	c := &Chain{index: make(map[string]int, len(revs))}
	for cur := None; ; {
		kids := children[cur]
		if len(kids) == 0 {
			break
		}
		next := byID[kids[0]]
		c.revisions = append(c.revisions, next)
		c.index[next.ID] = len(c.revisions)
		cur = next.ID
	}

	for _, r := range revs {
		if _, ok := c.index[r.ID]; !ok {
			return nil, &ChainError{Kind: KindCycle, Revision: r.ID}
		}
	}

	return c, nil
}

// MustChain is NewChain for package-level chains; it panics on invalid input.
func MustChain(revs ...Revision) *Chain {
	c, err := NewChain(revs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Revisions returns the chain root first.
func (c *Chain) Revisions() []Revision {
	out := make([]Revision, len(c.revisions))
	copy(out, c.revisions)
	return out
}

// Head is the last revision of the chain.
func (c *Chain) Head() string {
	return c.revisions[len(c.revisions)-1].ID
}

func (c *Chain) Len() int {
	return len(c.revisions)
}

// Get looks a revision up by id.
func (c *Chain) Get(id string) (Revision, bool) {
	i, ok := c.index[id]
	if !ok {
		return Revision{}, false
	}
	return c.revisions[i-1], true
}

// Position is the 1-based position of id in the chain, 0 for None and -1
// for unknown ids. It doubles as the persisted schema version.
func (c *Chain) Position(id string) int {
	if id == None {
		return 0
	}
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// At returns the revision id at a 1-based position; 0 is None.
func (c *Chain) At(pos int) (string, error) {
	if pos == 0 {
		return None, nil
	}
	if pos < 0 || pos > len(c.revisions) {
		return None, fmt.Errorf("%w: no revision at position %d", common.ErrRevisionNotFound, pos)
	}
	return c.revisions[pos-1].ID, nil
}

// Successor is the revision whose DownRevision is current.
func (c *Chain) Successor(current string) (Revision, error) {
	pos := c.Position(current)
	switch {
	case pos < 0:
		return Revision{}, fmt.Errorf("%w: unknown revision %s", common.ErrRevisionNotFound, current)
	case pos == len(c.revisions):
		return Revision{}, fmt.Errorf("%w: %s is head", common.ErrRevisionNotFound, current)
	}
	return c.revisions[pos], nil
}

// Display renders a revision id for humans; None shows as "none".
func Display(id string) string {
	if id == None {
		return "none"
	}
	return id
}

// ParseRevision is the inverse of Display.
func ParseRevision(s string) string {
	if strings.EqualFold(s, "none") || strings.EqualFold(s, "base") {
		return None
	}
	return s
}
