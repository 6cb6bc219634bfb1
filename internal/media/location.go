package media

import (
	"fmt"
	"strings"

	"github.com/castingly/castingly-backend/pkg/enums"
)

// Location is where a category's files live for one actor.
type Location struct {
	Bucket     string
	Folder     string
	Visibility enums.Visibility
}

// Locator maps (actor, category) onto a deterministic storage location.
type Locator struct {
	PublicBucket  string
	PrivateBucket string
}

var publicCategories = map[enums.MediaCategory]bool{
	enums.MediaCategoryHeadshot:  true,
	enums.MediaCategoryGallery:   true,
	enums.MediaCategoryReel:      true,
	enums.MediaCategoryVoiceOver: true,
}

// VisibilityFor reports whether category is served publicly.
func VisibilityFor(category enums.MediaCategory) enums.Visibility {
	if publicCategories[category] {
		return enums.VisibilityPublic
	}
	return enums.VisibilityPrivate
}

// ActorRoot is the folder that holds every file of an actor.
func ActorRoot(actorID string) string {
	return fmt.Sprintf("actors/%s", strings.TrimSpace(actorID))
}

// For returns the location for an actor's category.
func (l Locator) For(actorID string, category enums.MediaCategory) Location {
	visibility := VisibilityFor(category)
	bucket := l.PrivateBucket
	if visibility.IsPublic() {
		bucket = l.PublicBucket
	}
	return Location{
		Bucket:     bucket,
		Folder:     ActorRoot(actorID) + "/" + category.Folder(),
		Visibility: visibility,
	}
}

// Buckets returns the distinct buckets an actor's files may live in.
func (l Locator) Buckets() []string {
	if l.PublicBucket == l.PrivateBucket {
		return []string{l.PublicBucket}
	}
	return []string{l.PublicBucket, l.PrivateBucket}
}
