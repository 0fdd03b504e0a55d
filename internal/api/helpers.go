package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code       int    `json:"code"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ToHTTPResponse maps an error to a status code and client-facing body.
// Internal failures never leak their message.
func ToHTTPResponse(err error) (int, ErrorResponse) {
	se, ok := shoperrors.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal server error",
		}
	}

	status := http.StatusInternalServerError
	switch se.Code {
	case shoperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case shoperrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case shoperrors.ErrCodeRetrievalUnavailable, shoperrors.ErrCodeTimeout:
		status = http.StatusServiceUnavailable
	}

	resp := ErrorResponse{Code: status, ErrorCode: se.Code, Message: se.Message, Suggestion: se.Suggestion}
	if status == http.StatusInternalServerError {
		resp.Message = "internal server error"
		resp.Suggestion = ""
	}
	return status, resp
}

// WriteError writes err as a JSON error body.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ToHTTPResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", shoperrors.LogAttrs(err)...)
	}
	WriteSuccess(w, status, body)
}

// WriteSuccess writes data as JSON with the given status.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("response_write_failed", slog.String("error", err.Error()))
	}
}

// intParam reads an integer query parameter bounded to [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shoperrors.ValidationError(name+" must be an integer", err)
	}
	if v < lo || v > hi {
		return 0, shoperrors.ValidationError(name+" must be between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi), nil)
	}
	return v, nil
}

// floatParam reads an optional float query parameter.
func floatParam(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, shoperrors.ValidationError(name+" must be a number", err)
	}
	return &v, nil
}

// boolParam reads a boolean query parameter.
func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, shoperrors.ValidationError(name+" must be true or false", err)
	}
	return v, nil
}

// weightsParam parses "name:value,name:value". Key validation is left to the
// engine so both transports reject the same inputs.
func weightsParam(r *http.Request) (map[string]float64, error) {
	raw := r.URL.Query().Get("weights")
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, shoperrors.ValidationError("weights must be name:value pairs, got "+pair, nil)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, shoperrors.ValidationError("weight "+name+" must be a number", err)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}
