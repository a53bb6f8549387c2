// Package api serves the fluxdnad control API over a Unix socket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/internal/plugin"
	"github.com/fluxfullcircle/fluxdna/internal/scripting"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// Server serves the control API.
type Server struct {
	socketPath string
	runtime    *host.Runtime
	plugin     *plugin.Plugin
	scripts    *scripting.Engine
	startedAt  time.Time
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates an API server. scripts may be nil when extension scripts are
// disabled; gatherer may be nil to omit /metrics.
func New(socketPath string, rt *host.Runtime, p *plugin.Plugin, scripts *scripting.Engine, gatherer prometheus.Gatherer, startedAt time.Time, logger zerolog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		runtime:    rt,
		plugin:     p,
		scripts:    scripts,
		startedAt:  startedAt,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/hooks", s.handleHooks)
	mux.HandleFunc("GET /api/v1/content", s.handleContent)
	mux.HandleFunc("GET /api/v1/options/pages", s.handleOptionsPages)
	mux.HandleFunc("GET /api/v1/scripts", s.handleScripts)
	mux.HandleFunc("GET /api/v1/render/{phase}", s.handleRenderGet)
	mux.HandleFunc("POST /api/v1/render", s.handleRenderPost)
	mux.HandleFunc("POST /api/v1/plugins/{name}/activate", s.handleActivate)
	mux.HandleFunc("POST /api/v1/plugins/{name}/deactivate", s.handleDeactivate)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the API's HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening on the Unix socket. Blocks until Shutdown.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return err
	}
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	os.Chmod(s.socketPath, 0600)

	s.logger.Info().Str("socket", s.socketPath).Msg("API server listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := protocol.StatusResponse{
		Status:      "ok",
		Plugin:      s.plugin.Name(),
		Version:     s.plugin.Version(),
		Active:      s.runtime.Active(s.plugin.Name()),
		Uptime:      time.Since(s.startedAt).Truncate(time.Second).String(),
		NATSRunning: true,
		StartedAt:   s.startedAt,
		HookCount:   len(s.runtime.Snapshot()),
		OptionsRev:  s.runtime.Options.Revision(),
	}
	if s.scripts != nil {
		resp.ScriptCount = s.scripts.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHooks(w http.ResponseWriter, r *http.Request) {
	snap := s.runtime.Snapshot()
	hooks := make([]protocol.HookInfo, 0, len(snap))
	event := r.URL.Query().Get("event")
	for _, h := range snap {
		if event != "" && h.Event != event {
			continue
		}
		hooks = append(hooks, protocol.HookInfo{
			Kind:     string(h.Kind),
			Event:    h.Event,
			ID:       h.ID,
			Priority: h.Priority,
			Arity:    h.Arity,
		})
	}
	writeJSON(w, http.StatusOK, protocol.HooksResponse{Hooks: hooks})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	types := s.runtime.Content.PostTypes()
	resp := protocol.ContentResponse{PostTypes: make([]protocol.PostTypeInfo, 0, len(types))}
	for _, pt := range types {
		info := protocol.PostTypeInfo{
			Name:         pt.Name,
			Label:        pt.Labels.Name,
			Slug:         pt.Rewrite.Slug,
			MenuPosition: pt.MenuPosition,
			HasArchive:   pt.HasArchive,
			Taxonomies:   []string{},
		}
		for _, tax := range s.runtime.Content.TaxonomiesFor(pt.Name) {
			info.Taxonomies = append(info.Taxonomies, tax.Name)
		}
		resp.PostTypes = append(resp.PostTypes, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOptionsPages(w http.ResponseWriter, r *http.Request) {
	pages := options.Pages()
	resp := protocol.OptionsPagesResponse{Pages: make([]protocol.OptionsPage, 0, len(pages))}
	for _, p := range pages {
		page := protocol.OptionsPage{
			Title:      p.Title,
			MenuTitle:  p.MenuTitle,
			Slug:       p.Slug,
			Parent:     p.Parent,
			Capability: p.Capability,
		}
		for _, key := range p.Fields {
			_, set := s.runtime.Options.Get(key)
			page.Fields = append(page.Fields, protocol.OptionsField{Key: key, Set: set})
		}
		resp.Pages = append(resp.Pages, page)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScripts(w http.ResponseWriter, r *http.Request) {
	scripts := []protocol.ScriptInfo{}
	if s.scripts != nil {
		for _, sc := range s.scripts.Scripts() {
			scripts = append(scripts, protocol.ScriptInfo{
				Name:     sc.Name,
				FilePath: sc.FilePath,
				Bindings: sc.Bindings,
				Events:   sc.Events,
				LoadedAt: sc.LoadedAt,
				Calls:    sc.Calls,
				Errors:   sc.Errors,
			})
		}
	}
	writeJSON(w, http.StatusOK, protocol.ScriptsResponse{Scripts: scripts})
}

func (s *Server) handleRenderGet(w http.ResponseWriter, r *http.Request) {
	var postID int64
	if raw := r.URL.Query().Get("post_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid post_id", http.StatusBadRequest)
			return
		}
		postID = id
	}
	s.render(w, r, protocol.RenderRequest{Phase: r.PathValue("phase"), PostID: postID})
}

func (s *Server) handleRenderPost(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.render(w, r, req)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, req protocol.RenderRequest) {
	html, err := s.runtime.RenderString(r.Context(), req.Phase, req.PostID)
	resp := protocol.RenderResponse{Phase: req.Phase, HTML: html}
	switch {
	case errors.Is(err, host.ErrUnknownPhase):
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
	case err != nil:
		s.logger.Error().Err(err).Str("phase", req.Phase).Msg("render failed")
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.runtime.Activate(r.Context(), name); err != nil {
		s.lifecycleError(w, name, "activation", err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.ActivationResponse{Plugin: name, Active: s.runtime.Active(name)})
}

func (s *Server) lifecycleError(w http.ResponseWriter, name, op string, err error) {
	if errors.Is(err, host.ErrUnknownPlugin) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error().Err(err).Str("plugin", name).Msg(op + " failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.runtime.Deactivate(r.Context(), name); err != nil {
		s.lifecycleError(w, name, "deactivation", err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.ActivationResponse{Plugin: name, Active: s.runtime.Active(name)})
}
