package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sakif/streamhub/internal/apperror"
)

// maxUploadBytes caps the in-memory portion of multipart parsing; larger
// parts spill to disk.
const maxUploadBytes = 32 << 20

// saveUpload copies the named multipart file to a local temp file and
// returns its path. A missing part returns "" with no error so callers can
// decide whether the field was required. The caller owns cleanup.
func saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s file is invalid", field))
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", apperror.Upstream("saving uploaded file", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", apperror.Upstream("saving uploaded file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", apperror.Upstream("saving uploaded file", err)
	}

	return tmp.Name(), nil
}

// removeTemp drops a temp file if it still exists. Upload failures already
// remove the file, so a missing file here is not an error.
func removeTemp(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
