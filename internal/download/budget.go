// Package download admits candidate documents under a byte budget and runs
// the answering flow over each admitted document.
package download

import "sync"

// Caps are the fixed limits of a download budget, in bytes.
type Caps struct {
	// PerDocument skips any single document larger than this.
	PerDocument int64
	// Soft stops admission once spent reaches it.
	Soft int64
	// Hard rejects a document whose size would bring spent to or past it.
	Hard int64
	// Penalty is charged for each rejection against Hard so that admission
	// cannot stall on a long run of near-misses.
	Penalty int64
}

// DefaultCaps returns the stock limits: 7 MB per document, 3 MB soft cap,
// 10 MB hard cap, 100 KB penalty.
func DefaultCaps() Caps {
	return Caps{
		PerDocument: 7_000_000,
		Soft:        3_000_000,
		Hard:        10_000_000,
		Penalty:     100_000,
	}
}

// Decision is the outcome of offering a document to the budget.
type Decision int

const (
	// Admit means the document was charged and should be downloaded.
	Admit Decision = iota
	// SkipOversize means the document exceeds the per-document cap.
	SkipOversize
	// SkipHardCap means admitting would breach the hard cap; a penalty was charged.
	SkipHardCap
	// Stop means the soft cap is reached and no further documents are considered.
	Stop
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case SkipOversize:
		return "skip_oversize"
	case SkipHardCap:
		return "skip_hard_cap"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Budget tracks the bytes committed during one invocation. It is safe for
// concurrent use.
type Budget struct {
	caps Caps

	mu    sync.Mutex
	spent int64
}

// NewBudget creates a Budget with nothing spent.
func NewBudget(caps Caps) *Budget {
	return &Budget{caps: caps}
}

// Caps returns the budget limits.
func (b *Budget) Caps() Caps {
	return b.caps
}

// Spent returns the bytes committed so far.
func (b *Budget) Spent() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Exhausted reports whether the soft cap has been reached.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent >= b.caps.Soft
}

// Offer decides whether a document of size bytes fits and charges the
// budget accordingly.
func (b *Budget) Offer(size int64) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.spent >= b.caps.Soft:
		return Stop
	case size > b.caps.PerDocument:
		return SkipOversize
	case b.spent+size >= b.caps.Hard:
		b.spent += b.caps.Penalty
		return SkipHardCap
	default:
		b.spent += size
		return Admit
	}
}
