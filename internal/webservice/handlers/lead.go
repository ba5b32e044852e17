// Package handlers provides the HTTP handlers of the lead intake service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/forgehomes/lead-intake/internal/intake"
	"github.com/forgehomes/lead-intake/internal/lead"
	"github.com/forgehomes/lead-intake/internal/webservice/metrics"
)

// SuccessMessage is returned when a lead was submitted without a price estimate.
const SuccessMessage = "Contact added successfully!"

// Processor runs a decoded lead through the intake steps.
type Processor interface {
	Process(ctx context.Context, sub lead.Submission) (intake.Result, error)
}

// Lead accepts lead form submissions.
type Lead struct {
	processor     Processor
	maxUploadSize int64
}

// NewLead creates a new Lead handler. Bodies larger than maxUploadSize are rejected, unless it is 0.
func NewLead(p Processor, maxUploadSize int64) *Lead {
	return &Lead{
		processor:     p,
		maxUploadSize: maxUploadSize,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
	Data    string `json:"data"`
}

// ServeHTTP handles a lead submission.
//
// It answers 200 with the price estimate, or with a confirmation when no estimate was made.
// Any failure is answered with 500 and the error message.
func (h *Lead) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slog.Info("Request recv'd", "req_id", reqID)

	res, err := h.process(w, r)
	if err != nil {
		slog.Error("Failed to process lead", "req_id", reqID, "err", err)
		writeJSON(w, reqID, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if res.Estimate != nil {
		writeJSON(w, reqID, http.StatusOK, res.Estimate)
		return
	}
	writeJSON(w, reqID, http.StatusOK, messageResponse{Message: SuccessMessage, Data: res.ContactID})
}

func (h *Lead) process(w http.ResponseWriter, r *http.Request) (intake.Result, error) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return intake.Result{}, fmt.Errorf("request body larger than %d bytes", maxErr.Limit)
		}
		return intake.Result{}, fmt.Errorf("failed to read request body: %v", err)
	}

	sub, err := lead.Decode(body)
	if err != nil {
		return intake.Result{}, err
	}
	return h.processor.Process(r.Context(), sub)
}

func writeJSON(w http.ResponseWriter, reqID string, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "req_id", reqID, "err", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("Failed to write response", "req_id", reqID, "err", err)
	}
}
