package backfill

import (
	"github.com/castingly/castingly-backend/internal/media"
	"github.com/castingly/castingly-backend/pkg/dmapi"
	"github.com/castingly/castingly-backend/pkg/enums"
)

// Patch is the metadata change computed for one file.
type Patch map[string]any

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool { return len(p) == 0 }

// ComputePatch compares a file's stored metadata with what its storage path
// implies. A strong (folder) category overrides the stored one; a weak
// (extension) category only fills a missing one. The owner only fills a
// missing actor_id, and actor_email follows when emails knows the owner.
func ComputePatch(f dmapi.File, emails map[string]string) Patch {
	inferred := media.InferFromPath(f.Path(), f.OriginalFilename)
	patch := Patch{}

	stored := storedCategory(f)
	switch inferred.Strength {
	case media.StrengthStrong:
		if inferred.Category != stored {
			patch[media.MetaCategory] = inferred.Category.String()
		}
	case media.StrengthWeak:
		if stored == "" {
			patch[media.MetaCategory] = inferred.Category.String()
		}
	}

	if inferred.ActorID != "" && f.MetadataString(media.MetaActorID) == "" {
		patch[media.MetaActorID] = inferred.ActorID
		if email := emails[inferred.ActorID]; email != "" && f.MetadataString(media.MetaActorEmail) == "" {
			patch[media.MetaActorEmail] = email
		}
	}
	return patch
}

// EffectiveCategory is the category a file has once patch is applied.
func EffectiveCategory(f dmapi.File, patch Patch) enums.MediaCategory {
	if raw, ok := patch[media.MetaCategory].(string); ok {
		return enums.MediaCategory(raw)
	}
	return storedCategory(f)
}

// storedCategory parses the stored category; unknown values count as missing.
func storedCategory(f dmapi.File) enums.MediaCategory {
	c, err := enums.ParseMediaCategory(f.MetadataString(media.MetaCategory))
	if err != nil {
		return ""
	}
	return c
}

// ownerToEnrich returns the actor id whose email a patch would need.
func ownerToEnrich(f dmapi.File) string {
	if f.MetadataString(media.MetaActorID) != "" || f.MetadataString(media.MetaActorEmail) != "" {
		return ""
	}
	return media.InferFromPath(f.Path(), f.OriginalFilename).ActorID
}
