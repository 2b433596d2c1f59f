package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/relief/internal/core"
)

// multipartOverhead is allowed on top of the payload limit for form framing.
const multipartOverhead = 1 << 20

// multipartMemory is how much of a multipart form is buffered in memory;
// larger files spill to temporary files.
const multipartMemory = 8 << 20

var errNoFile = errors.New("no file provided")

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.ImportLimiterStatus(),
	})
}

// handleListFamilies returns every registered family with its template headers.
func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Families())
}

// handleTemplate returns a blank import template for a family.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")

	data, err := s.service.Template(r.Context(), actorFromRequest(r), family)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeCSV(w, fmt.Sprintf("%s_template.csv", family), data)
}

// handleExport returns the family's active records, or its trash view.
func (s *Server) handleExport(trash bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		family := chi.URLParam(r, "family")

		res, err := s.service.Export(r.Context(), actorFromRequest(r), family, trash)
		if err != nil {
			respondError(w, r, err)
			return
		}

		writeCSV(w, res.Filename(), res.Data)
	}
}

// handleImport reconciles an uploaded CSV into the family. The payload is
// either the "file" field of a multipart form or the raw request body.
func (s *Server) handleImport(trash bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		family := chi.URLParam(r, "family")
		opts := core.ImportOptions{
			SkipDuplicates: parseBoolParam(r, "skipDuplicates"),
			Trash:          trash,
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)

		payload, err := importPayload(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		defer payload.Close()

		res, err := s.service.Import(r.Context(), actorFromRequest(r), family, payload, opts)
		if err != nil {
			respondError(w, r, err)
			return
		}

		writeJSON(w, res)
	}
}

// importPayload returns the CSV stream of an import request.
func importPayload(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedCSV, err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	return file, nil
}

// parseBoolParam reads a boolean query parameter; anything unparsable is false.
func parseBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// writeCSV sends data as a CSV attachment.
func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
