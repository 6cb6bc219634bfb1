package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/castingly/castingly-backend/pkg/enums"
	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
)

// UploadFormFile is the multipart field holding the file.
const UploadFormFile = "file"

// UploadForm is the non-file part of a media upload.
type UploadForm struct {
	Title    string `json:"title" validate:"max=200"`
	Category string `json:"category" validate:"omitempty,media_category"`
}

// MediaCategory returns the requested category, defaulting to other.
func (f UploadForm) MediaCategory() enums.MediaCategory {
	if strings.TrimSpace(f.Category) == "" {
		return enums.MediaCategoryOther
	}
	c, err := enums.ParseMediaCategory(f.Category)
	if err != nil {
		return enums.MediaCategoryOther
	}
	return c
}

// ParsedUpload is a validated multipart upload. Close releases the file and
// any temporary storage.
type ParsedUpload struct {
	Form        UploadForm
	File        multipart.File
	Filename    string
	ContentType string
	Size        int64
	form        *multipart.Form
}

func (p *ParsedUpload) Close() error {
	var errs []error
	if p.File != nil {
		errs = append(errs, p.File.Close())
	}
	if p.form != nil {
		errs = append(errs, p.form.RemoveAll())
	}
	return errors.Join(errs...)
}

// ParseUploadForm reads a multipart upload, keeping up to maxMemory bytes in
// memory and spilling the rest to disk.
func ParseUploadForm(r *http.Request, maxMemory int64) (*ParsedUpload, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	form := UploadForm{
		Title:    SanitizeString(r.FormValue("title"), 0),
		Category: strings.TrimSpace(r.FormValue("category")),
	}
	if err := validate.Struct(form); err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, formatValidationErrors(err)
	}

	file, header, err := r.FormFile(UploadFormFile)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		if errors.Is(err, http.ErrMissingFile) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required").WithDetails(map[string]string{UploadFormFile: "is required"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file")
	}
	if header.Size <= 0 {
		_ = file.Close()
		_ = r.MultipartForm.RemoveAll()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}

	return &ParsedUpload{
		Form:        form,
		File:        file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		form:        r.MultipartForm,
	}, nil
}
