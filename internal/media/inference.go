package media

import (
	"path"
	"regexp"
	"strings"

	"github.com/castingly/castingly-backend/pkg/enums"
)

// Strength ranks how much an inferred category can be trusted.
type Strength int

const (
	// StrengthNone means nothing could be inferred.
	StrengthNone Strength = iota
	// StrengthWeak comes from file extension or name heuristics.
	StrengthWeak
	// StrengthStrong comes from the storage folder convention.
	StrengthStrong
)

// Inference is what a storage path says about a file.
type Inference struct {
	ActorID  string
	Category enums.MediaCategory
	Strength Strength
}

var actorSegmentRe = regexp.MustCompile(`(?:^|/)actors/([^/]+)/`)

var folderCategories = map[string]enums.MediaCategory{
	"headshot":    enums.MediaCategoryHeadshot,
	"headshots":   enums.MediaCategoryHeadshot,
	"gallery":     enums.MediaCategoryGallery,
	"galleries":   enums.MediaCategoryGallery,
	"photos":      enums.MediaCategoryGallery,
	"reel":        enums.MediaCategoryReel,
	"reels":       enums.MediaCategoryReel,
	"demo-reels":  enums.MediaCategoryReel,
	"resume":      enums.MediaCategoryResume,
	"resumes":     enums.MediaCategoryResume,
	"self-tape":   enums.MediaCategorySelfTape,
	"self-tapes":  enums.MediaCategorySelfTape,
	"selftapes":   enums.MediaCategorySelfTape,
	"voice-over":  enums.MediaCategoryVoiceOver,
	"voice-overs": enums.MediaCategoryVoiceOver,
	"voiceovers":  enums.MediaCategoryVoiceOver,
	"document":    enums.MediaCategoryDocument,
	"documents":   enums.MediaCategoryDocument,
	"docs":        enums.MediaCategoryDocument,
	"other":       enums.MediaCategoryOther,
}

var (
	imageExts    = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".heic": true, ".heif": true, ".avif": true}
	videoExts    = map[string]bool{".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".avi": true, ".mkv": true}
	audioExts    = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true}
	documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".rtf": true, ".txt": true, ".odt": true}
)

var (
	resumeNameRe   = regexp.MustCompile(`(?:^|[^a-z])(resume|cv)(?:[^a-z]|$)`)
	headshotNameRe = regexp.MustCompile(`(?:^|[^a-z])headshot`)
)

// InferFromPath derives owner and category from a storage path. The folder
// convention actors/{id}/{category folder}/ is authoritative; otherwise the
// filename extension gives a weak guess. filename may be empty, in which case
// the last path segment is used.
func InferFromPath(storagePath, filename string) Inference {
	p := strings.ReplaceAll(strings.TrimSpace(storagePath), `\`, "/")
	var out Inference

	if m := actorSegmentRe.FindStringSubmatch(p); m != nil {
		out.ActorID = m[1]
	}

	dir := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		dir = p[:i]
	} else {
		dir = ""
	}
	if category, ok := categoryFromFolders(dir, out.ActorID); ok {
		out.Category = category
		out.Strength = StrengthStrong
		return out
	}

	name := strings.TrimSpace(filename)
	if name == "" {
		name = path.Base(p)
	}
	if category, ok := categoryFromName(name); ok {
		out.Category = category
		out.Strength = StrengthWeak
	}
	return out
}

// categoryFromFolders picks a category from directory segments. A headshot
// folder anywhere wins; otherwise the deepest specific folder wins, and
// "other" is used only when nothing more specific is present. The segment
// holding the actor id is never read as a folder.
func categoryFromFolders(dir, actorID string) (enums.MediaCategory, bool) {
	if dir == "" {
		return "", false
	}
	segments := strings.Split(strings.ToLower(dir), "/")
	actorID = strings.ToLower(actorID)

	var specific enums.MediaCategory
	sawOther := false
	for i, segment := range segments {
		if actorID != "" && i > 0 && segments[i-1] == "actors" && segment == actorID {
			continue
		}
		c, ok := folderCategory(segment)
		switch {
		case !ok:
		case c == enums.MediaCategoryHeadshot:
			return c, true
		case c == enums.MediaCategoryOther:
			sawOther = true
		default:
			specific = c
		}
	}
	if specific != "" {
		return specific, true
	}
	if sawOther {
		return enums.MediaCategoryOther, true
	}
	return "", false
}

func folderCategory(segment string) (enums.MediaCategory, bool) {
	segment = strings.ReplaceAll(strings.TrimSpace(segment), "_", "-")
	c, ok := folderCategories[segment]
	return c, ok
}

func categoryFromName(name string) (enums.MediaCategory, bool) {
	lower := strings.ToLower(name)
	ext := path.Ext(lower)
	base := strings.TrimSuffix(lower, ext)
	switch {
	case documentExts[ext]:
		if resumeNameRe.MatchString(base) {
			return enums.MediaCategoryResume, true
		}
		return enums.MediaCategoryDocument, true
	case imageExts[ext]:
		if headshotNameRe.MatchString(base) {
			return enums.MediaCategoryHeadshot, true
		}
		return enums.MediaCategoryGallery, true
	case videoExts[ext]:
		return enums.MediaCategoryReel, true
	case audioExts[ext]:
		return enums.MediaCategoryVoiceOver, true
	}
	return "", false
}
