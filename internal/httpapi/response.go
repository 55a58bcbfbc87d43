package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/roach88/domainreg/internal/layout"
	"github.com/roach88/domainreg/internal/registry"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// mapRegistryError translates a registry failure into a status, code and
// client-safe message. Errors without a code are internal.
func mapRegistryError(err error) (int, string, string) {
	switch registry.CodeOf(err) {
	case registry.CodeAlreadyInitialized:
		return http.StatusConflict, string(registry.CodeAlreadyInitialized), "registry is already initialized"
	case registry.CodeNotInitialized:
		return http.StatusConflict, string(registry.CodeNotInitialized), "registry is not initialized"
	case registry.CodeRecordNotFound:
		return http.StatusNotFound, string(registry.CodeRecordNotFound), err.Error()
	case registry.CodeInvalidName:
		return http.StatusBadRequest, string(registry.CodeInvalidName), err.Error()
	case registry.CodeUnauthorized:
		return http.StatusUnauthorized, string(registry.CodeUnauthorized), "owner signature is missing or invalid"
	case registry.CodeDuplicateRecord:
		return http.StatusInternalServerError, string(registry.CodeDuplicateRecord), "registry state is inconsistent"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// maxBodyBytes bounds request bodies. The largest legal name, escaped as
// \u00XX throughout, plus owner, signature and field names, fits with room
// to spare.
const maxBodyBytes = 6*layout.MaxAccountSize + 4096

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func parseIntDefault(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// writeDecodeError reports a decodeBody failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}
