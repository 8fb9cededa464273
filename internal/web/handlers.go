package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/menu"
	"github.com/TrestonSMC/dozers-site/internal/model"
	"github.com/TrestonSMC/dozers-site/internal/reviews"
	"github.com/TrestonSMC/dozers-site/internal/submission"
)

const maxFormBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type eventsResponse struct {
	Events []model.PublicEvent `json:"events"`
}

// handleEvents always answers 200. Whatever goes wrong upstream has already
// been logged and counted; the visitor just sees fewer events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs := s.aggregate(r)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, eventsResponse{Events: evs})
}

func (s *Server) aggregate(r *http.Request) (evs []model.PublicEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			appLog.Error("api events: provider panicked", fmt.Errorf("panic: %v", rec))
			evs = []model.PublicEvent{}
		}
	}()
	if s.deps.Events == nil {
		return []model.PublicEvent{}
	}
	evs = s.deps.Events.Aggregate(r.Context())
	if evs == nil {
		evs = []model.PublicEvent{}
	}
	return evs
}

type menuResponse struct {
	Categories []menu.Category `json:"categories"`
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	if s.deps.Menu == nil {
		writeError(w, http.StatusBadGateway, menu.ErrNoURL.Error())
		return
	}
	cats, err := s.deps.Menu.Fetch(r.Context())
	if err != nil {
		appLog.Error("api menu: fetch failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, menuResponse{Categories: cats})
}

type reviewsResponse struct {
	Reviews []reviews.Review `json:"reviews"`
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reviews == nil {
		writeError(w, http.StatusInternalServerError, "Missing API key")
		return
	}
	list, err := s.deps.Reviews.Fetch(r.Context())
	switch {
	case errors.Is(err, reviews.ErrNoAPIKey):
		appLog.Warn("api reviews: GOOGLE_MAPS_API_KEY is not set")
		writeError(w, http.StatusInternalServerError, "Missing API key")
		return
	case err != nil:
		appLog.Error("api reviews: fetch failed", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch reviews")
		return
	}
	if list == nil {
		list = []reviews.Review{}
	}
	writeJSON(w, http.StatusOK, reviewsResponse{Reviews: list})
}

type galleryResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// handleGallery reports upstream errors in the body with a 200 so the page
// can still render an empty grid.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if s.deps.Gallery == nil {
		writeJSON(w, http.StatusOK, galleryResponse{Images: []string{}, Error: "gallery is not configured"})
		return
	}
	images, err := s.deps.Gallery.Images(r.Context())
	if err != nil {
		appLog.Error("api gallery: list failed", err)
		writeJSON(w, http.StatusOK, galleryResponse{Images: []string{}, Error: err.Error()})
		return
	}
	if images == nil {
		images = []string{}
	}
	writeJSON(w, http.StatusOK, galleryResponse{Images: images})
}

type submitResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var form submission.Form
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFormBytes))
	if err := dec.Decode(&form); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if s.deps.Mailer == nil {
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	id, err := s.deps.Mailer.Send(r.Context(), form)
	if err != nil {
		appLog.Error("api submit-event: send failed", err, "requested_by", form.RequestedBy)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	appLog.Info("event submission sent", "message_id", id, "requested_by", form.RequestedBy)
	writeJSON(w, http.StatusOK, submitResponse{Success: true})
}
