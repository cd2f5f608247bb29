package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
)

// maxRequestedOccurrences bounds the maxOccurrences a client may ask for
const maxRequestedOccurrences = 1000

type occurrencesResponse struct {
	Dates     []time.Time `json:"dates"`
	Truncated bool        `json:"truncated"`
}

type previewRequest struct {
	Recurrence     *recurrence.Pattern   `json:"recurrence"`
	DateRange      *recurrence.DateRange `json:"dateRange"`
	MaxOccurrences int                   `json:"maxOccurrences,omitempty"`
}

type shareResponse struct {
	URL string `json:"url"`
}

// parseMax reads an optional occurrence limit; 0 means the engine default
func parseMax(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxRequestedOccurrences {
		return 0, fmt.Errorf("max must be an integer between 1 and %d", maxRequestedOccurrences)
	}
	return n, nil
}

// expand runs the engine and records the outcome
func (s *Server) expand(p recurrence.Pattern, rng recurrence.DateRange, max int) (occurrencesResponse, error) {
	result, err := s.engine.ExpandWithOptions(p, rng, recurrence.ExpansionOptions{MaxOccurrences: max})
	if err != nil {
		return occurrencesResponse{}, err
	}
	s.metrics.ObserveExpansion(p.Type, result)
	return occurrencesResponse{Dates: result.Dates, Truncated: result.Truncated}, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Recurrence == nil || req.DateRange == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "recurrence and dateRange are required")
		return
	}
	if req.MaxOccurrences < 0 || req.MaxOccurrences > maxRequestedOccurrences {
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("maxOccurrences must be between 1 and %d", maxRequestedOccurrences))
		return
	}

	resp, err := s.expand(*req.Recurrence, *req.DateRange, req.MaxOccurrences)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// createFromDocument validates doc and saves it for the current user
func (s *Server) createFromDocument(w http.ResponseWriter, r *http.Request, doc event.Document, source string) {
	if err := doc.Validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	p := principal(r)
	ev := event.New(p.ID, doc)
	if err := s.store.CreateEvent(r.Context(), ev); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "event saved",
		"user_id", p.ID,
		"event_id", ev.ID,
		"type", ev.Recurrence.Type,
		"source", source)

	w.Header().Set("Location", "/events/"+ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	doc, err := event.Decode(data)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.createFromDocument(w, r, doc, "api")
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), principal(r).ID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// loadEvent fetches the {id} event of the current user, writing the error response on failure
func (s *Server) loadEvent(w http.ResponseWriter, r *http.Request) (*event.Event, bool) {
	ev, err := s.store.GetEvent(r.Context(), principal(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return nil, false
	}
	return ev, true
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteEvent(r.Context(), p.ID, id); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "event deleted",
		"user_id", p.ID,
		"event_id", id)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	max, err := parseMax(r.URL.Query().Get("max"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	resp, err := s.expand(ev.Recurrence, ev.DateRange, max)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	data, err := event.EncodeIndent(ev.Document())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set(headerContentType, mimeTypeJSON)
	w.Header().Set(headerContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": event.ExportFileName(ev.Name),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	data, err := event.ToICS(ev, s.engine.Config().MaxOccurrences)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set(headerContentType, mimeTypeCalendar)
	w.Header().Set(headerContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": ev.ID + ".ics",
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	link, err := event.ShareURL(s.publicURL, ev.Document())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: link})
}

// handleImport accepts a document either as the request body or as the
// data query parameter of a share link.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var data []byte
	if shared := r.URL.Query().Get("data"); shared != "" {
		data = []byte(shared)
	} else {
		body, err := readBody(w, r, maxBodyBytes)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		data = body
	}

	doc, err := event.Decode(data)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.createFromDocument(w, r, doc, "import")
}

func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "calendar file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	doc, err := event.FromICS(data)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.createFromDocument(w, r, doc, "ics")
}
