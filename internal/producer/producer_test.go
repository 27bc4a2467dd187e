package producer

import (
	"context"
	"testing"
	"time"
)

type fixedHead struct{ n uint64 }

func (f fixedHead) BlockNumber(ctx context.Context) (uint64, error) { return f.n, nil }

// Producer bound: head = 100, next_block = 98, demand = 10. Producer
// emits exactly [98, 99, 100] and parks 7 units of demand.
func TestRequestDemand_ProducerBound(t *testing.T) {
	p := New(1, 98, fixedHead{n: 100}, 0)

	heights, err := p.RequestDemand(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{98, 99, 100}
	if len(heights) != len(want) {
		t.Fatalf("heights = %v, want %v", heights, want)
	}
	for i, h := range heights {
		if h != want[i] {
			t.Fatalf("heights = %v, want %v", heights, want)
		}
	}
	if p.PendingDemand() != 7 {
		t.Fatalf("pending demand = %d, want 7", p.PendingDemand())
	}
	if p.NextBlock() != 101 {
		t.Fatalf("next block = %d, want 101", p.NextBlock())
	}
}

// Monotonic blocks: repeated demand requests against an advancing head
// always yield a strictly increasing sequence.
func TestRequestDemand_Monotonic(t *testing.T) {
	head := &mutableHead{n: 5}
	p := New(1, 0, head, time.Nanosecond)

	var all []uint64
	for round := 0; round < 5; round++ {
		heights, err := p.RequestDemand(context.Background(), 2)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, heights...)
		head.n += 3
	}

	for i := 1; i < len(all); i++ {
		if all[i] <= all[i-1] {
			t.Fatalf("not strictly increasing at %d: %v", i, all)
		}
	}
}

// Available = 0 parks the entire demand rather than emitting past head.
func TestRequestDemand_ParksWhenNoneAvailable(t *testing.T) {
	p := New(1, 50, fixedHead{n: 49}, 0)
	heights, err := p.RequestDemand(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(heights) != 0 {
		t.Fatalf("heights = %v, want none", heights)
	}
	if p.PendingDemand() != 5 {
		t.Fatalf("pending demand = %d, want 5", p.PendingDemand())
	}
}

type mutableHead struct{ n uint64 }

func (m *mutableHead) BlockNumber(ctx context.Context) (uint64, error) { return m.n, nil }
