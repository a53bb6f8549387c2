// Package web serves the public site and the admin screen over TCP. Pages
// are assembled from the runtime's head and body_open phases; the admin
// screen lists the settings pages and streams lifecycle events.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// recentEvents is how many lifecycle events the admin screen lists.
const recentEvents = 50

// Config holds web server settings passed to New.
type Config struct {
	Listen string
	// Username and Password protect the admin routes with HTTP Basic Auth.
	// Either empty leaves them open.
	Username string
	Password string
	// SiteName is used as the page title.
	SiteName string
}

// Server serves the site front end.
type Server struct {
	listen     string
	siteName   string
	runtime    *host.Runtime
	nc         *nats.Conn
	sub        *nats.Subscription
	httpServer *http.Server
	logger     zerolog.Logger
	templates  *template.Template
	feed       *feed
	username   string
	password   string
}

// New creates a web server. nc may be nil, in which case the admin event
// feed stays empty.
func New(cfg Config, rt *host.Runtime, nc *nats.Conn, logger zerolog.Logger) *Server {
	siteName := cfg.SiteName
	if siteName == "" {
		siteName = "Flux"
	}
	s := &Server{
		listen:    cfg.Listen,
		siteName:  siteName,
		runtime:   rt,
		nc:        nc,
		logger:    logger.With().Str("component", "web").Logger(),
		feed:      newFeed(recentEvents),
		username:  cfg.Username,
		password:  cfg.Password,
		templates: template.Must(template.New("").Funcs(template.FuncMap{"join": strings.Join}).Parse(pageTemplates)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /post/{id}", s.handlePage)
	mux.Handle("GET /wp-admin/{$}", s.requireAuth(http.HandlerFunc(s.handleAdmin)))
	mux.Handle("GET /wp-admin/events", s.requireAuth(http.HandlerFunc(s.handleEventStream)))

	s.httpServer = &http.Server{Handler: securityHeaders(mux), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	if s.username == "" || s.password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="fluxdna"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Subscribe feeds lifecycle events from NATS into the admin event feed.
func (s *Server) Subscribe() error {
	if s.nc == nil {
		return nil
	}
	sub, err := s.nc.Subscribe(protocol.SubjectEvents, func(msg *nats.Msg) {
		var evt protocol.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			s.logger.Debug().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
			return
		}
		s.feed.add(evt)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Start subscribes to events and listens on TCP. Blocks until Shutdown or
// error.
func (s *Server) Start() error {
	if err := s.Subscribe(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.logger.Info().Str("listen", s.listen).Msg("site listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	return s.httpServer.Shutdown(ctx)
}
