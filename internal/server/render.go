package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// renderService answers fluxdna.render.<phase> requests with the rendered
// page fragment.
type renderService struct {
	runtime *host.Runtime
	secret  string
	timeout time.Duration
	logger  zerolog.Logger
}

func (s *renderService) subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(protocol.SubjectRenderAll, s.handle)
}

func (s *renderService) handle(msg *nats.Msg) {
	resp := s.serve(msg)
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal render response")
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("render reply failed")
	}
}

func (s *renderService) serve(msg *nats.Msg) protocol.RenderResponse {
	phase := strings.TrimPrefix(msg.Subject, protocol.SubjectRender(""))

	var req protocol.RenderRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return protocol.RenderResponse{Phase: phase, Error: "invalid request: " + err.Error()}
		}
	}
	if req.Phase == "" {
		req.Phase = phase
	}
	if req.Phase != phase {
		return protocol.RenderResponse{Phase: phase, Error: "phase does not match subject"}
	}
	if !protocol.VerifyRender(&req, s.secret) {
		s.logger.Warn().Str("source", req.Source).Str("phase", phase).Msg("rejected unsigned render request")
		return protocol.RenderResponse{Phase: phase, Error: "invalid signature"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	html, err := s.runtime.RenderString(ctx, phase, req.PostID)
	if err != nil {
		return protocol.RenderResponse{Phase: phase, Error: err.Error()}
	}
	return protocol.RenderResponse{Phase: phase, HTML: html}
}
