package media

import (
	"testing"

	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/enums"
)

func TestDefaultPolicyLimits(t *testing.T) {
	p := DefaultPolicy()
	if got := p.MaxCount(enums.MediaCategoryHeadshot); got != 5 {
		t.Fatalf("headshot max count = %d", got)
	}
	if got := p.MaxBytes(enums.MediaCategoryReel); got != 500*megabyte {
		t.Fatalf("reel max bytes = %d", got)
	}
	if got := p.Limit(enums.MediaCategory("mystery")); got != defaultLimits[enums.MediaCategoryOther] {
		t.Fatalf("unknown category should fall back to other, got %+v", got)
	}
	if !p.CountLimited(enums.MediaCategoryGallery) {
		t.Fatal("gallery should be count limited by default")
	}
}

func TestPolicyFromConfigOverrides(t *testing.T) {
	p := PolicyFromConfig(config.MediaConfig{
		DisableImageLimits: true,
		HeadshotMaxCount:   8,
		ResumeMaxMB:        2,
	})
	if got := p.MaxCount(enums.MediaCategoryHeadshot); got != 8 {
		t.Fatalf("headshot override not applied, got %d", got)
	}
	if got := p.MaxBytes(enums.MediaCategoryHeadshot); got != 10*megabyte {
		t.Fatalf("headshot bytes should keep default, got %d", got)
	}
	if got := p.MaxBytes(enums.MediaCategoryResume); got != 2*megabyte {
		t.Fatalf("resume bytes override not applied, got %d", got)
	}
	if p.CountLimited(enums.MediaCategoryHeadshot) || p.CountLimited(enums.MediaCategoryGallery) {
		t.Fatal("image categories should skip the count limit when disabled")
	}
	if !p.CountLimited(enums.MediaCategoryReel) {
		t.Fatal("non-image categories stay count limited")
	}
	if DefaultPolicy().MaxCount(enums.MediaCategoryHeadshot) != 5 {
		t.Fatal("overrides must not leak into the defaults")
	}
}

func TestLimitReachedMessage(t *testing.T) {
	got := LimitReachedMessage(enums.MediaCategoryHeadshot, 5)
	if got != "Limit reached: you can have up to 5 headshots" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestLargestMaxBytes(t *testing.T) {
	p := PolicyFromConfig(config.MediaConfig{OtherMaxMB: 900})
	if got := p.LargestMaxBytes(); got != 900*megabyte {
		t.Fatalf("expected override to be the largest cap, got %d", got)
	}
}
