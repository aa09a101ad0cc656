package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	engine *engine.Engine
	logger *zap.Logger
}

// RankResponse is the remote ranking wire format.
type RankResponse struct {
	Suggestions []apptype.RemoteSuggestion `json:"suggestions"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// POST /v1/entities
func (h *handlers) registerEntities(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_register_entities")
	var success bool
	defer func() { done(success) }()

	var req apptype.RegisterEntitiesArgs
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	entities := make([]apptype.Entity, 0, len(req.Entities))
	for _, in := range req.Entities {
		ent, err := in.ToEntity()
		if err != nil {
			h.fail(w, apperrors.NewValidationError(err.Error()))
			return
		}
		entities = append(entities, ent)
	}
	if err := h.engine.RegisterEntities(r.Context(), entities); err != nil {
		h.fail(w, err)
		return
	}
	success = true
	respondJSON(w, h.logger, http.StatusCreated, map[string]int{"registered": len(entities)})
}

// GET /v1/entities/{entityID}
func (h *handlers) getEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	ent, ok := h.engine.Entity(id)
	if !ok {
		h.fail(w, apperrors.NewNotFoundError(fmt.Sprintf("entity %q", id)))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, ent)
}

// GET /v1/entities/{entityID}/suggestions
func (h *handlers) suggestions(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_generate_suggestions")
	var success bool
	defer func() { done(success) }()

	id := chi.URLParam(r, "entityID")
	opts, err := parseOptions(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.engine.GenerateSuggestions(r.Context(), id, opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	success = true
	respondJSON(w, h.logger, http.StatusOK, apptype.SuggestionsResult{EntityID: id, Suggestions: list})
}

func parseOptions(r *http.Request) (apptype.GenerateOptions, error) {
	q := r.URL.Query()
	var opts apptype.GenerateOptions
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperrors.NewValidationError("maxResults must be an integer")
		}
		opts.MaxResults = n
	}
	for _, t := range splitList(q["types"]) {
		opts.TypeFilter = append(opts.TypeFilter, apptype.EntityType(t))
	}
	opts.ExcludeIDs = splitList(q["exclude"])
	for name, dst := range map[string]*bool{"includeTags": &opts.IncludeTags, "includeReason": &opts.IncludeReason} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, apperrors.NewValidationError(name + " must be a boolean")
			}
			*dst = b
		}
	}
	return opts, nil
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// POST /v1/links
func (h *handlers) link(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_link_entities")
	var success bool
	defer func() { done(success) }()

	var req apptype.LinkEntitiesArgs
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.Link(r.Context(), req.Relations); err != nil {
		h.fail(w, err)
		return
	}
	success = true
	respondJSON(w, h.logger, http.StatusCreated, map[string]int{"linked": len(req.Relations)})
}

// POST /v1/feedback
func (h *handlers) feedback(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_submit_feedback")
	var success bool
	defer func() { done(success) }()

	var req apptype.SubmitFeedbackArgs
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.SubmitFeedback(req.EntityID, req.SuggestionID, req.IsHelpful); err != nil {
		h.fail(w, err)
		return
	}
	success = true
	respondJSON(w, h.logger, http.StatusAccepted, h.engine.FeedbackCounts(req.SuggestionID))
}

// POST /v1/interactions
func (h *handlers) interaction(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_record_interaction")
	var success bool
	defer func() { done(success) }()

	var req apptype.RecordInteractionArgs
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.RecordInteraction(req.SourceID, req.TargetID); err != nil {
		h.fail(w, err)
		return
	}
	success = true
	w.WriteHeader(http.StatusAccepted)
}

// POST /v1/rank answers a remote ranking request with this engine's results.
func (h *handlers) rank(w http.ResponseWriter, r *http.Request) {
	done := metrics.TimeTool("http_rank")
	var success bool
	defer func() { done(success) }()

	var req apptype.RemoteRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.engine.GenerateSuggestions(r.Context(), req.EntityID, apptype.GenerateOptions{
		MaxResults:    req.Limit,
		TypeFilter:    req.Types,
		IncludeTags:   true,
		IncludeReason: true,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	out := RankResponse{Suggestions: make([]apptype.RemoteSuggestion, 0, len(list))}
	for _, s := range list {
		score := s.Confidence
		out.Suggestions = append(out.Suggestions, apptype.RemoteSuggestion{
			ID:       s.ID,
			Type:     s.Type,
			Score:    &score,
			Reason:   s.Reason,
			Metadata: apptype.RemoteMetadata{Name: s.Label, Tags: s.Tags},
		})
	}
	success = true
	respondJSON(w, h.logger, http.StatusOK, out)
}

// GET /v1/stats
func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.engine.Stats())
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	respondError(w, h.logger, status, err.Error())
}

func statusFor(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
