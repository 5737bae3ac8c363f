package download

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

const mb = 1_000_000

func TestBudget_Scenario(t *testing.T) {
	b := NewBudget(Caps{PerDocument: 7 * mb, Soft: 10 * mb, Hard: 20 * mb, Penalty: 100_000})

	assert.Equal(t, Admit, b.Offer(2*mb))
	assert.Equal(t, int64(2*mb), b.Spent())

	assert.Equal(t, SkipOversize, b.Offer(8*mb))
	assert.Equal(t, int64(2*mb), b.Spent())

	assert.Equal(t, Admit, b.Offer(1*mb))
	assert.Equal(t, int64(3*mb), b.Spent())
	assert.False(t, b.Exhausted())
}

func TestBudget_HardCapPenalty(t *testing.T) {
	b := NewBudget(Caps{PerDocument: 7 * mb, Soft: 9 * mb, Hard: 10 * mb, Penalty: 100_000})

	assert.Equal(t, Admit, b.Offer(6*mb))
	assert.Equal(t, SkipHardCap, b.Offer(4*mb))
	assert.Equal(t, int64(6*mb+100_000), b.Spent())
	assert.Equal(t, Admit, b.Offer(2*mb))
	assert.Equal(t, int64(8*mb+100_000), b.Spent())
}

func TestBudget_StopsAtSoftCap(t *testing.T) {
	b := NewBudget(Caps{PerDocument: 7 * mb, Soft: 3 * mb, Hard: 10 * mb, Penalty: 100_000})

	assert.Equal(t, Admit, b.Offer(3*mb))
	assert.True(t, b.Exhausted())
	assert.Equal(t, Stop, b.Offer(1))
	assert.Equal(t, int64(3*mb), b.Spent())
}

func TestBudget_EqualToHardIsRejected(t *testing.T) {
	b := NewBudget(Caps{PerDocument: 10 * mb, Soft: 10 * mb, Hard: 10 * mb, Penalty: 1})
	assert.Equal(t, SkipHardCap, b.Offer(10*mb))
}

func TestBudget_Safety(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		caps := Caps{
			PerDocument: rng.Int64N(10*mb) + 1,
			Soft:        rng.Int64N(20*mb) + 1,
			Hard:        rng.Int64N(20*mb) + 1,
			Penalty:     rng.Int64N(200_000) + 1,
		}
		b := NewBudget(caps)

		var admitted int64
		for range 30 {
			size := rng.Int64N(12 * mb)
			if b.Offer(size) == Admit {
				admitted += size
			}
		}
		assert.LessOrEqual(t, admitted, caps.Hard+caps.Penalty, "caps=%+v", caps)
	}
}

func TestBudget_MonotonicUnderConcurrency(t *testing.T) {
	b := NewBudget(Caps{PerDocument: mb, Soft: 50 * mb, Hard: 60 * mb, Penalty: 10})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				b.Offer(100_000)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20*10*100_000), b.Spent())
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "admit", Admit.String())
	assert.Equal(t, "skip_oversize", SkipOversize.String())
	assert.Equal(t, "skip_hard_cap", SkipHardCap.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
