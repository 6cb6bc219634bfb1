package media

import (
	"fmt"

	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/enums"
)

const megabyte = int64(1 << 20)

// Limit caps how many logical assets and how many bytes a category accepts.
type Limit struct {
	MaxCount int
	MaxBytes int64
}

var defaultLimits = map[enums.MediaCategory]Limit{
	enums.MediaCategoryHeadshot:  {MaxCount: 5, MaxBytes: 10 * megabyte},
	enums.MediaCategoryGallery:   {MaxCount: 50, MaxBytes: 15 * megabyte},
	enums.MediaCategoryReel:      {MaxCount: 5, MaxBytes: 500 * megabyte},
	enums.MediaCategoryResume:    {MaxCount: 3, MaxBytes: 10 * megabyte},
	enums.MediaCategorySelfTape:  {MaxCount: 20, MaxBytes: 500 * megabyte},
	enums.MediaCategoryVoiceOver: {MaxCount: 10, MaxBytes: 100 * megabyte},
	enums.MediaCategoryDocument:  {MaxCount: 20, MaxBytes: 25 * megabyte},
	enums.MediaCategoryOther:     {MaxCount: 20, MaxBytes: 25 * megabyte},
}

// Policy resolves per-category limits.
type Policy struct {
	limits             map[enums.MediaCategory]Limit
	disableImageLimits bool
}

// DefaultPolicy returns the built-in limits with image count limits enforced.
func DefaultPolicy() Policy {
	limits := make(map[enums.MediaCategory]Limit, len(defaultLimits))
	for k, v := range defaultLimits {
		limits[k] = v
	}
	return Policy{limits: limits}
}

// PolicyFromConfig applies non-zero overrides on top of the defaults.
func PolicyFromConfig(cfg config.MediaConfig) Policy {
	p := DefaultPolicy()
	p.disableImageLimits = cfg.DisableImageLimits

	overrides := map[enums.MediaCategory][2]int64{
		enums.MediaCategoryHeadshot:  {int64(cfg.HeadshotMaxCount), cfg.HeadshotMaxMB},
		enums.MediaCategoryGallery:   {int64(cfg.GalleryMaxCount), cfg.GalleryMaxMB},
		enums.MediaCategoryReel:      {int64(cfg.ReelMaxCount), cfg.ReelMaxMB},
		enums.MediaCategoryResume:    {int64(cfg.ResumeMaxCount), cfg.ResumeMaxMB},
		enums.MediaCategorySelfTape:  {int64(cfg.SelfTapeMaxCount), cfg.SelfTapeMaxMB},
		enums.MediaCategoryVoiceOver: {int64(cfg.VoiceOverMaxCount), cfg.VoiceOverMaxMB},
		enums.MediaCategoryDocument:  {int64(cfg.DocumentMaxCount), cfg.DocumentMaxMB},
		enums.MediaCategoryOther:     {int64(cfg.OtherMaxCount), cfg.OtherMaxMB},
	}
	for category, o := range overrides {
		limit := p.limits[category]
		if o[0] > 0 {
			limit.MaxCount = int(o[0])
		}
		if o[1] > 0 {
			limit.MaxBytes = o[1] * megabyte
		}
		p.limits[category] = limit
	}
	return p
}

// Limit returns the limit for category, falling back to "other".
func (p Policy) Limit(category enums.MediaCategory) Limit {
	if l, ok := p.limits[category]; ok {
		return l
	}
	return p.limits[enums.MediaCategoryOther]
}

// MaxBytes returns the size cap for category.
func (p Policy) MaxBytes(category enums.MediaCategory) int64 {
	return p.Limit(category).MaxBytes
}

// MaxCount returns the logical asset cap for category.
func (p Policy) MaxCount(category enums.MediaCategory) int {
	return p.Limit(category).MaxCount
}

// LargestMaxBytes is the biggest size cap across all categories.
func (p Policy) LargestMaxBytes() int64 {
	var largest int64
	for _, l := range p.limits {
		if l.MaxBytes > largest {
			largest = l.MaxBytes
		}
	}
	return largest
}

// CountLimited reports whether uploads to category are subject to the count cap.
func (p Policy) CountLimited(category enums.MediaCategory) bool {
	if p.disableImageLimits && category.IsImage() {
		return false
	}
	return p.MaxCount(category) > 0
}

// LimitReachedMessage is the user-facing message for a count rejection.
func LimitReachedMessage(category enums.MediaCategory, max int) string {
	return fmt.Sprintf("Limit reached: you can have up to %d %s", max, category.Plural())
}

// TooLargeMessage is the user-facing message for a size rejection.
func TooLargeMessage(category enums.MediaCategory, max int64) string {
	return fmt.Sprintf("File too large: %s uploads are limited to %d MB", category, max/megabyte)
}
