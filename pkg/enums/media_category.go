package enums

import (
	"fmt"
	"strings"
)

// MediaCategory classifies an uploaded actor asset; it drives storage location and limits.
type MediaCategory string

const (
	MediaCategoryHeadshot  MediaCategory = "headshot"
	MediaCategoryGallery   MediaCategory = "gallery"
	MediaCategoryReel      MediaCategory = "reel"
	MediaCategoryResume    MediaCategory = "resume"
	MediaCategorySelfTape  MediaCategory = "self_tape"
	MediaCategoryVoiceOver MediaCategory = "voice_over"
	MediaCategoryDocument  MediaCategory = "document"
	MediaCategoryOther     MediaCategory = "other"
)

var validMediaCategories = []MediaCategory{
	MediaCategoryHeadshot,
	MediaCategoryGallery,
	MediaCategoryReel,
	MediaCategoryResume,
	MediaCategorySelfTape,
	MediaCategoryVoiceOver,
	MediaCategoryDocument,
	MediaCategoryOther,
}

// MediaCategories returns every known category in declaration order.
func MediaCategories() []MediaCategory {
	out := make([]MediaCategory, len(validMediaCategories))
	copy(out, validMediaCategories)
	return out
}

// String returns the literal string for the category.
func (c MediaCategory) String() string {
	return string(c)
}

// IsValid reports whether the category is known.
func (c MediaCategory) IsValid() bool {
	for _, candidate := range validMediaCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsImage reports whether the category holds still images.
func (c MediaCategory) IsImage() bool {
	return c == MediaCategoryHeadshot || c == MediaCategoryGallery
}

// Folder is the storage folder segment used under actors/<id>/.
func (c MediaCategory) Folder() string {
	switch c {
	case MediaCategoryHeadshot:
		return "headshots"
	case MediaCategoryGallery:
		return "gallery"
	case MediaCategoryReel:
		return "reels"
	case MediaCategoryResume:
		return "resumes"
	case MediaCategorySelfTape:
		return "self-tapes"
	case MediaCategoryVoiceOver:
		return "voice-overs"
	case MediaCategoryDocument:
		return "documents"
	default:
		return "other"
	}
}

// Plural is the user-facing plural used in limit messages.
func (c MediaCategory) Plural() string {
	switch c {
	case MediaCategoryGallery:
		return "gallery images"
	case MediaCategorySelfTape:
		return "self tapes"
	case MediaCategoryVoiceOver:
		return "voice overs"
	case MediaCategoryOther:
		return "other files"
	default:
		return string(c) + "s"
	}
}

// ParseMediaCategory converts raw input into a MediaCategory. Hyphenated and
// plural spellings used by older clients ("self-tape", "headshots") are accepted.
func ParseMediaCategory(value string) (MediaCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, candidate := range validMediaCategories {
		if string(candidate) == normalized || string(candidate)+"s" == normalized {
			return candidate, nil
		}
	}
	switch normalized {
	case "voiceover", "voiceovers":
		return MediaCategoryVoiceOver, nil
	case "selftape", "selftapes":
		return MediaCategorySelfTape, nil
	}
	return "", fmt.Errorf("invalid media category %q", value)
}
