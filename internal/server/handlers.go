package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/depreview/depreview/pkg/buildinfo"
	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/pipeline"
)

// Multipart form fields accepted by POST /lists.
const (
	uploadField  = "list"
	projectField = "project"
)

type handlers struct {
	runner   *pipeline.Runner
	logger   *log.Logger
	breakers func() map[string]string
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type healthBody struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Version: buildinfo.Version}
	if h.breakers != nil {
		body.Breakers = h.breakers()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	data, opts, err := readUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	up, err := h.runner.Upload(r.Context(), data, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", up.URL)
	writeJSON(w, http.StatusCreated, up)
}

// readUpload returns the list from the "list" field of a multipart form,
// or the raw request body for any other content type. A multipart form may
// also carry the project file in the "project" field.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, pipeline.UploadOptions, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, pipeline.MaxUploadSize+64*1024)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, pipeline.UploadOptions{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not read request body")
		}
		return data, pipeline.UploadOptions{Hint: "body"}, nil
	}

	// Room for the list and the project file.
	r.Body = http.MaxBytesReader(w, r.Body, 2*pipeline.MaxUploadSize+64*1024)
	if err := r.ParseMultipartForm(pipeline.MaxUploadSize); err != nil {
		return nil, pipeline.UploadOptions{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid multipart form")
	}
	data, name, err := formFile(r, uploadField)
	if err != nil {
		return nil, pipeline.UploadOptions{}, err
	}
	opts := pipeline.UploadOptions{Hint: name}
	if _, ok := r.MultipartForm.File[projectField]; ok {
		if opts.Project, _, err = formFile(r, projectField); err != nil {
			return nil, pipeline.UploadOptions{}, err
		}
	}
	return data, opts, nil
}

// formFile reads the named file field of a parsed multipart form.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "missing form field %q", field)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "could not read %s", hdr.Filename)
	}
	return data, hdr.Filename, nil
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.runner.Report(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) pkg(w http.ResponseWriter, r *http.Request) {
	reg := chi.URLParam(r, "registry")
	name := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	view, err := h.runner.Package(r.Context(), reg, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if view.Redirect != "" {
		http.Redirect(w, r, "/p/"+view.Registry+"/"+view.Redirect, http.StatusMovedPermanently)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// fail writes err with the status matching its code. Internal errors are
// logged and hidden from the client.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error: "uploaded file too large",
			Code:  string(errors.ErrCodeInvalidInput),
		})
		return
	}

	status := statusFor(err)
	body := errorBody{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"error", err)
		if status == http.StatusInternalServerError {
			body = errorBody{Error: "internal error", Code: string(errors.ErrCodeInternal)}
		}
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidID, errors.ErrCodeNotFound, errors.ErrCodePackageNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNetwork, errors.ErrCodeRateLimited:
		return http.StatusBadGateway
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	if errors.IsUserError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
