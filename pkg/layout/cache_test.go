package layout

import (
	"testing"

	"github.com/go-loom/loom/pkg/graphics"
)

func TestCacheComputeHitAndMiss(t *testing.T) {
	cache := NewCache[BoxConstraints, graphics.Size](16)
	key := NewCacheKey(1, Loose(graphics.Size{Width: 100, Height: 100}))

	computes := 0
	compute := func() (graphics.Size, error) {
		computes++
		return graphics.Size{Width: 40, Height: 20}, nil
	}

	first, err := cache.Compute(key, compute)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Compute(key, compute)
	if err != nil {
		t.Fatal(err)
	}
	if computes != 1 {
		t.Errorf("expected a single compute, got %d", computes)
	}
	if first != second {
		t.Errorf("cached geometry differs: %v vs %v", first, second)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCacheChildSignatureForcesMiss(t *testing.T) {
	cache := NewCache[BoxConstraints, graphics.Size](16)
	constraints := Loose(graphics.Size{Width: 100, Height: 100})

	cache.Insert(NewCacheKey(1, constraints).WithChildCount(2), graphics.Size{Width: 50, Height: 50})

	// Same element, same constraints, different child count: must miss.
	if _, ok := cache.Get(NewCacheKey(1, constraints).WithChildCount(3)); ok {
		t.Fatal("changed child count must not serve a stale size")
	}
	if _, ok := cache.Get(NewCacheKey(1, constraints).WithChildCount(2)); !ok {
		t.Fatal("matching child count should hit")
	}
}

func TestCacheInvalidateAndRemove(t *testing.T) {
	cache := NewCache[BoxConstraints, graphics.Size](16)
	constraints := Tight(graphics.Size{Width: 10, Height: 10})
	key := NewCacheKey(7, constraints)
	cache.Insert(key, graphics.Size{Width: 10, Height: 10})

	cache.Invalidate(7)
	if _, ok := cache.Get(key); ok {
		t.Fatal("invalidated entry must not be served")
	}

	cache.Insert(key, graphics.Size{Width: 10, Height: 10})
	cache.Remove(7)
	if _, ok := cache.Get(key); ok {
		t.Fatal("removed entry must not be served")
	}
}

func TestCacheCapacityResets(t *testing.T) {
	cache := NewCache[BoxConstraints, graphics.Size](4)
	for i := 0; i < 8; i++ {
		key := NewCacheKey(uint32(i+1), Tight(graphics.Size{Width: float64(i), Height: 1}))
		cache.Insert(key, graphics.Size{Width: float64(i), Height: 1})
	}
	if stats := cache.Stats(); stats.Entries > 4 {
		t.Errorf("cache exceeded capacity: %+v", stats)
	}
}

func TestSliverProtocolDefaults(t *testing.T) {
	var p SliverProtocol
	constraints := SliverConstraints{RemainingExtent: 300, CrossAxisExtent: 80}

	collapsed := p.Smallest(constraints)
	if collapsed.ScrollExtent != 0 || collapsed.PaintExtent != 0 || collapsed.CrossAxisExtent != 80 {
		t.Errorf("unexpected collapsed geometry: %+v", collapsed)
	}

	clamped := p.Constrain(constraints, SliverGeometry{ScrollExtent: 900, PaintExtent: 900, CrossAxisExtent: 80})
	if clamped.PaintExtent != 300 {
		t.Errorf("paint extent should clamp to the remaining budget, got %v", clamped.PaintExtent)
	}
}

func TestBoxConstraintsValidate(t *testing.T) {
	valid := BoxConstraints{MinWidth: 0, MaxWidth: 100, MinHeight: 0, MaxHeight: 100}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid constraints rejected: %v", err)
	}

	inverted := BoxConstraints{MinWidth: 50, MaxWidth: 10, MaxHeight: 10}
	if err := inverted.Validate(); err == nil {
		t.Error("min > max must be rejected")
	}

	negative := BoxConstraints{MinWidth: -1, MaxWidth: 10, MaxHeight: 10}
	if err := negative.Validate(); err == nil {
		t.Error("negative minimum must be rejected")
	}
}
