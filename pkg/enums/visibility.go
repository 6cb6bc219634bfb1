package enums

// Visibility controls whether a stored object is served publicly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// IsPublic reports whether the object is publicly readable.
func (v Visibility) IsPublic() bool {
	return v == VisibilityPublic
}
