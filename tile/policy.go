package tile

import "fmt"

// PriorityCutoff is the least important class of content a memory
// budget still allows to be kept.
type PriorityCutoff int

const (
	CutoffAllowNothing PriorityCutoff = iota
	CutoffAllowRequiredOnly
	CutoffAllowNiceToHave
	CutoffAllowEverything
)

func (c PriorityCutoff) String() string {
	switch c {
	case CutoffAllowNothing:
		return "AllowNothing"
	case CutoffAllowRequiredOnly:
		return "AllowRequiredOnly"
	case CutoffAllowNiceToHave:
		return "AllowNiceToHave"
	case CutoffAllowEverything:
		return "AllowEverything"
	default:
		return fmt.Sprintf("PriorityCutoff(%d)", int(c))
	}
}

// UnmarshalText parses the names produced by String, so cutoffs can be
// written in settings files.
func (c *PriorityCutoff) UnmarshalText(b []byte) error {
	for v := CutoffAllowNothing; v <= CutoffAllowEverything; v++ {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("tile: unknown priority cutoff %q", b)
}

// MarshalText implements encoding.TextMarshaler.
func (c PriorityCutoff) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// MemoryLimitPolicy tells the tile manager which bins may hold memory.
type MemoryLimitPolicy int

const (
	AllowNothing MemoryLimitPolicy = iota
	// AllowAbsoluteMinimum keeps only tiles needed for the current view.
	AllowAbsoluteMinimum
	// AllowPrepaintOnly also keeps tiles about to become visible.
	AllowPrepaintOnly
	AllowAnything
)

func (p MemoryLimitPolicy) String() string {
	switch p {
	case AllowNothing:
		return "AllowNothing"
	case AllowAbsoluteMinimum:
		return "AllowAbsoluteMinimum"
	case AllowPrepaintOnly:
		return "AllowPrepaintOnly"
	case AllowAnything:
		return "AllowAnything"
	default:
		return fmt.Sprintf("MemoryLimitPolicy(%d)", int(p))
	}
}

// LimitPolicy maps a cutoff onto the tile manager's policy.
func (c PriorityCutoff) LimitPolicy() MemoryLimitPolicy {
	switch c {
	case CutoffAllowRequiredOnly:
		return AllowAbsoluteMinimum
	case CutoffAllowNiceToHave:
		return AllowPrepaintOnly
	case CutoffAllowEverything:
		return AllowAnything
	default:
		return AllowNothing
	}
}

// allows reports whether a resource of class c survives cutoff.
func (c PriorityCutoff) allows(class Class) bool {
	switch c {
	case CutoffAllowNothing:
		return false
	case CutoffAllowRequiredOnly:
		return class == ClassRequired
	default:
		return true
	}
}

// ManagedMemoryPolicy is the budget handed down by the embedder. It
// carries one limit for when the output is visible and a tighter one for
// when it is not.
type ManagedMemoryPolicy struct {
	BytesLimitWhenVisible        int64          `toml:"bytes_limit_when_visible"`
	PriorityCutoffWhenVisible    PriorityCutoff `toml:"priority_cutoff_when_visible"`
	BytesLimitWhenNotVisible     int64          `toml:"bytes_limit_when_not_visible"`
	PriorityCutoffWhenNotVisible PriorityCutoff `toml:"priority_cutoff_when_not_visible"`
	NumResourcesLimit            int            `toml:"num_resources_limit"`
}

// DefaultMemoryLimitBytes is the visible budget used when the embedder
// supplies none.
const DefaultMemoryLimitBytes = 64 << 20

// DefaultNumResourcesLimit bounds the number of tiles that may hold memory.
const DefaultNumResourcesLimit = 10000

// DefaultManagedMemoryPolicy keeps everything up to limit while visible
// and nothing while hidden.
func DefaultManagedMemoryPolicy(limit int64) ManagedMemoryPolicy {
	return ManagedMemoryPolicy{
		BytesLimitWhenVisible:        limit,
		PriorityCutoffWhenVisible:    CutoffAllowEverything,
		BytesLimitWhenNotVisible:     0,
		PriorityCutoffWhenNotVisible: CutoffAllowNothing,
		NumResourcesLimit:            DefaultNumResourcesLimit,
	}
}

// Limit returns the byte limit for the given visibility.
func (p ManagedMemoryPolicy) Limit(visible bool) int64 {
	if visible {
		return p.BytesLimitWhenVisible
	}
	return p.BytesLimitWhenNotVisible
}

// Cutoff returns the priority cutoff for the given visibility.
func (p ManagedMemoryPolicy) Cutoff(visible bool) PriorityCutoff {
	if visible {
		return p.PriorityCutoffWhenVisible
	}
	return p.PriorityCutoffWhenNotVisible
}

// TreePriority says which tree wins when active and pending tiles compete.
type TreePriority int

const (
	SamePriorityForBothTrees TreePriority = iota
	SmoothnessTakesPriority
	NewContentTakesPriority
)

func (t TreePriority) String() string {
	switch t {
	case SamePriorityForBothTrees:
		return "SamePriorityForBothTrees"
	case SmoothnessTakesPriority:
		return "SmoothnessTakesPriority"
	case NewContentTakesPriority:
		return "NewContentTakesPriority"
	default:
		return fmt.Sprintf("TreePriority(%d)", int(t))
	}
}

// GlobalState is the budget the tile manager works under.
type GlobalState struct {
	MemoryLimitBytes       int64
	UnusedMemoryLimitBytes int64
	MemoryLimitPolicy      MemoryLimitPolicy
	NumResourcesLimit      int
	TreePriority           TreePriority
}

// MemoryStats reports tile memory after the last ManageTiles.
type MemoryStats struct {
	// RequiredBytes is what the current view needs.
	RequiredBytes int64
	// NiceToHaveBytes additionally covers prepaint.
	NiceToHaveBytes int64
	AllocatedBytes  int64
	// UsedBytes is the total held by the resource pool.
	UsedBytes int64
}
