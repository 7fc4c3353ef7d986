package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/processing"
	"github.com/Vzurxy/discord-crasher-checker/internal/util"
)

// uploadField is the multipart form field carrying the media file.
const uploadField = "file"

var (
	errMissingFile = errors.New("multipart request has no \"file\" field")
	errEmptyUpload = errors.New("request body is empty")
)

type checkResponse struct {
	RequestID  string           `json:"request_id"`
	ScanID     string           `json:"scan_id"`
	Verdict    string           `json:"verdict"`
	Code       int              `json:"code"`
	Format     string           `json:"format"`
	Frames     int              `json:"frames"`
	Probes     int              `json:"probes"`
	Skipped    bool             `json:"skipped"`
	NoVideo    bool             `json:"no_video"`
	Truncated  bool             `json:"truncated"`
	Anomaly    *anomalyResponse `json:"anomaly,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

type anomalyResponse struct {
	Frame    int    `json:"frame"`
	Delta    int64  `json:"delta"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Code      int    `json:"code"`
	Error     string `json:"error"`
}

// handleHealth reports liveness along with current check load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"checks":   s.sem.InUse(),
		"capacity": s.sem.Capacity(),
	})
}

// handleCheck spools the uploaded media to a temp file and checks it.
// Verdicts are 200 responses; infrastructure failures are 422 with the
// negative code. With every worker busy the request is refused with 503
// before the body is read.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire() {
		httpBusyTotal.Inc()
		w.Header().Set("Retry-After", "1")
		s.writeError(w, r, http.StatusServiceUnavailable, cerrors.CodeInternal, "no free worker")
		return
	}
	defer s.sem.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())

	upload, err := s.spool(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(w, r, http.StatusRequestEntityTooLarge, cerrors.CodeInternal, "upload exceeds size limit")
		case errors.Is(err, errMissingFile), errors.Is(err, errEmptyUpload):
			s.writeError(w, r, http.StatusBadRequest, cerrors.CodeInternal, err.Error())
		default:
			s.logger.Warn("spooling upload failed", "error", err)
			s.writeError(w, r, http.StatusBadRequest, cerrors.CodeInternal, "could not read upload")
		}
		return
	}
	defer func() {
		if err := upload.Cleanup(); err != nil {
			s.logger.Warn("removing upload failed", "path", upload.Path(), "error", err)
		}
	}()

	res := processing.CheckFile(r.Context(), s.opener, upload.Path(), s.checkOpts)
	if res.Err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, res.Code, res.Err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, newCheckResponse(r.Header.Get(requestIDHeader), res))
}

func newCheckResponse(requestID string, r processing.FileResult) checkResponse {
	resp := checkResponse{
		RequestID:  requestID,
		ScanID:     r.ScanID,
		Verdict:    r.Result.Verdict.String(),
		Code:       int(r.Code),
		Format:     r.Result.Format,
		Frames:     r.Result.Frames,
		Probes:     r.Result.Probes,
		Skipped:    r.Result.Skipped,
		NoVideo:    r.Result.NoVideo,
		Truncated:  r.Result.Truncated,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Unsafe() {
		resp.Anomaly = &anomalyResponse{
			Frame:    r.Result.AnomalyFrame,
			Delta:    r.Result.AnomalyDelta,
			Expected: r.Result.Expected.String(),
			Observed: r.Result.Observed.String(),
		}
	}
	return resp
}

// spool copies the media in r to a temp file. A multipart body must carry
// the file in the "file" field; any other body is the file itself.
func (s *Server) spool(r *http.Request) (*util.TempFile, error) {
	src := io.Reader(r.Body)
	ext := ""

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, err
		}
		src = nil
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if part.FormName() == uploadField {
				src = part
				ext = filepath.Ext(part.FileName())
				break
			}
		}
		if src == nil {
			return nil, errMissingFile
		}
	}

	tmp, err := util.CreateTempFile(s.uploadDir, uploadPrefix, ext)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(tmp.File(), src)
	if err == nil {
		err = tmp.Close()
	}
	if err != nil {
		_ = tmp.Cleanup()
		return nil, err
	}
	if n == 0 {
		_ = tmp.Cleanup()
		return nil, errEmptyUpload
	}
	return tmp, nil
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code cerrors.Code, message string) {
	s.writeJSON(w, status, errorResponse{
		RequestID: r.Header.Get(requestIDHeader),
		Code:      int(code),
		Error:     message,
	})
}
