package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zeebo/blake3"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/entitylist"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error    string               `json:"error"`
	Problems []validation.Problem `json:"problems,omitempty"`
}

// fingerprint is a short content hash used for ETags and stream dedup.
func fingerprint(b []byte) string {
	sum := blake3.Sum256(b)
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

// writeJSON encodes v with a strong ETag and answers If-None-Match with 304.
func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, fmt.Errorf("encode response: %w", err))
		return
	}
	etag := `"` + fingerprint(body) + `"`
	w.Header().Set("ETag", etag)
	if code == http.StatusOK && r.Method == http.MethodGet && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, entitylist.ErrNotToggleable),
		errors.Is(err, errBadRequest), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNotSignedIn), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, perm.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := errorBody{Error: http.StatusText(code)}
	if code != http.StatusInternalServerError {
		body.Error = err.Error()
	} else {
		logger.Error("request failed", "error", err)
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

var errBadRequest = errors.New("malformed request body")

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
