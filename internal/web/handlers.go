package web

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// PageData is the template data for a public page.
type PageData struct {
	Title    string
	PostID   int64
	Head     template.HTML
	BodyOpen template.HTML
}

// AdminData is the template data for the admin screen.
type AdminData struct {
	Title  string
	Head   template.HTML
	Pages  []options.Page
	Events []EventData
}

// EventData is one lifecycle event row.
type EventData struct {
	ID      string
	Time    string
	Type    string
	Source  string
	Plugin  string
	Version string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var postID int64
	if raw := r.PathValue("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.NotFound(w, r)
			return
		}
		postID = id
	}

	head, err := s.runtime.RenderString(r.Context(), host.PhaseHead, postID)
	if err != nil {
		s.renderError(w, err)
		return
	}
	body, err := s.runtime.RenderString(r.Context(), host.PhaseBodyOpen, postID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.templates.ExecuteTemplate(w, "page", PageData{
		Title:    s.siteName,
		PostID:   postID,
		Head:     template.HTML(head),
		BodyOpen: template.HTML(body),
	})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	head, err := s.runtime.RenderString(r.Context(), host.PhaseAdminHead, 0)
	if err != nil {
		s.renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.templates.ExecuteTemplate(w, "admin", AdminData{
		Title:  s.siteName + " Admin",
		Head:   template.HTML(head),
		Pages:  options.Pages(),
		Events: s.buildRecentEvents(),
	})
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("page render failed")
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (s *Server) buildRecentEvents() []EventData {
	latest := s.feed.latest()
	events := make([]EventData, len(latest))
	for i, evt := range latest {
		events[i] = eventData(evt)
	}
	return events
}

func eventData(evt protocol.Event) EventData {
	return EventData{
		ID:      evt.ID,
		Time:    evt.Time.UTC().Format(time.DateTime),
		Type:    evt.Type,
		Source:  evt.Source,
		Plugin:  evt.Plugin,
		Version: evt.Version,
	}
}
