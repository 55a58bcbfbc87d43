package httpapi

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type createDomainRequest struct {
	Owner      ir.Pubkey `json:"owner"`
	Name       string    `json:"name"`
	DomainType uint8     `json:"domain_type"`
	Signature  string    `json:"signature"`
}

type updateDomainRequest struct {
	DomainType *uint8 `json:"domain_type"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Initialize(r.Context()); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "initialized")
}

func (h *Handler) createDomain(w http.ResponseWriter, r *http.Request) {
	var req createDomainRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "signature must be hex")
		return
	}

	id, err := h.reg.CreateDomain(r.Context(), registry.CreateRequest{
		Owner:      req.Owner,
		Name:       req.Name,
		DomainType: req.DomainType,
		Signature:  sig,
	})
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/domains/%d", id))
	writeSuccess(w, http.StatusCreated, map[string]any{
		"id": id,
	})
}

func (h *Handler) updateDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	var req updateDomainRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.DomainType == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "domain_type is required")
		return
	}

	if err := h.reg.UpdateDomain(r.Context(), id, *req.DomainType); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"id":          id,
		"domain_type": *req.DomainType,
	})
}

func (h *Handler) getDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := domainIDParam(w, r)
	if !ok {
		return
	}
	rec, err := h.reg.Record(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rec)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := strconv.ParseInt(defaultString(q.Get("after"), "0"), 10, 64)
	if err != nil || after < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "after must be a non-negative integer")
		return
	}
	limit, err := parseIntDefault(q.Get("limit"), defaultEventLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
		return
	}
	limit = min(limit, maxEventLimit)

	evs, err := h.reg.Events(r.Context(), after, limit)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	envelopes := make([]events.Envelope, 0, len(evs))
	for _, ev := range evs {
		env, err := events.NewEnvelope(ev)
		if err != nil {
			h.writeRegistryError(w, r, err)
			return
		}
		envelopes = append(envelopes, env)
	}

	next := after
	if n := len(envelopes); n > 0 {
		next = envelopes[n-1].Seq
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"events": envelopes,
		"next":   next,
	})
}

func (h *Handler) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapRegistryError(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestIDFromContext(r.Context()),
			"code", code,
			"error", err,
		)
	}
	writeError(w, status, code, msg)
}

func domainIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be an unsigned integer")
		return 0, false
	}
	return id, true
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
