package media

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/castingly/castingly-backend/pkg/dmapi"
)

var variantSuffixRe = regexp.MustCompile(`[_-](thumbnail|thumb|small|medium|large|xl|xxl|original|orig|web|preview|\d+x\d+|\d+w)$`)

// LogicalAssetKey collapses size variants of one upload ("me_large.jpg",
// "me-thumb.webp", "me.jpg") onto the same key.
func LogicalAssetKey(name string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	for {
		stripped := variantSuffixRe.ReplaceAllString(base, "")
		if stripped == base || stripped == "" {
			break
		}
		base = stripped
	}
	return base
}

func fileName(f dmapi.File) string {
	if f.OriginalFilename != "" {
		return f.OriginalFilename
	}
	return path.Base(f.Path())
}

// DedupeVariants keeps the most recently uploaded file per logical asset.
// The result is ordered newest first.
func DedupeVariants(files []dmapi.File) []dmapi.File {
	latest := make(map[string]dmapi.File, len(files))
	order := make([]string, 0, len(files))
	for _, f := range files {
		key := LogicalAssetKey(fileName(f))
		if key == "" {
			key = f.ID
		}
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
			latest[key] = f
			continue
		}
		if f.UploadedAt.After(prev.UploadedAt) {
			latest[key] = f
		}
	}
	out := make([]dmapi.File, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// MostRecentMatch returns the newest file whose logical key matches name.
func MostRecentMatch(files []dmapi.File, name string) (*dmapi.File, bool) {
	want := LogicalAssetKey(name)
	if want == "" {
		return nil, false
	}
	var best *dmapi.File
	for i := range files {
		if LogicalAssetKey(fileName(files[i])) != want {
			continue
		}
		if best == nil || files[i].UploadedAt.After(best.UploadedAt) {
			best = &files[i]
		}
	}
	return best, best != nil
}
