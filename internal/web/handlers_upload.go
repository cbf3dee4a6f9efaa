package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/JonMunkholm/salesreport/internal/logging"
)

var errNoFile = errors.New("no file provided in the 'file' form field")

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

type uploadResponse struct {
	Message  string            `json:"message"`
	UploadID string            `json:"upload_id"`
	FileName string            `json:"file_name"`
	Rows     int               `json:"rows"`
	Repaired core.RepairCounts `json:"repaired"`
}

// handleUpload ingests the multipart "file" field. Without a file the
// configured source path is imported instead.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	req := core.UploadRequest{Username: logging.UsernameFromContext(r.Context())}

	file, header, err := formFile(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if file != nil {
		defer file.Close()
		req.FileName = header.Filename
		req.Body = file
	}

	result, err := s.service.Upload(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrTooManyUploads) {
			w.Header().Set("Retry-After", strconv.Itoa(5))
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "Data uploaded successfully",
		UploadID: result.UploadID,
		FileName: result.FileName,
		Rows:     result.Rows,
		Repaired: result.Repaired,
	})
}

// handlePreview runs a dry-run upload of the multipart "file" field and
// returns the repairs and report it would produce.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	file, header, err := formFile(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if file == nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	resp, err := s.service.Preview(r.Context(), file, header.Filename)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// formFile returns the "file" part, or nil when the request carries none.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.ContentLength == 0 || r.Header.Get("Content-Type") == "" {
		return nil, nil, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("parse upload form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read upload file: %w", err)
	}
	return file, header, nil
}
