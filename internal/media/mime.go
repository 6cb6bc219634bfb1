package media

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const genericContentType = "application/octet-stream"

// resolveContentType trusts a specific declared type, then the extension,
// then sniffs the leading bytes. body is rewound before returning.
func resolveContentType(declared, filename string, body io.ReadSeeker) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, genericContentType) {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType, nil
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType, nil
		}
	}
	if body == nil {
		return genericContentType, nil
	}

	detected, err := mimetype.DetectReader(body)
	if _, seekErr := body.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("rewind upload: %w", seekErr)
	}
	if err != nil || detected == nil {
		return genericContentType, nil
	}
	mediaType, _, parseErr := mime.ParseMediaType(detected.String())
	if parseErr != nil {
		return genericContentType, nil
	}
	return mediaType, nil
}
