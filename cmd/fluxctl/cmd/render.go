package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

func newRenderCmd() *cobra.Command {
	var (
		postID  int64
		natsURL string
		token   string
		secret  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render <phase>",
		Short: "Render a page phase (head, body_open, admin_head)",
		Long: `Runs a page phase on the daemon and prints the markup. By default the
request goes over the control socket. With --nats it is sent as a
fluxdna.render.<phase> request, signed with --secret when the daemon requires
signed render requests.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := protocol.RenderRequest{Phase: args[0], PostID: postID, Source: "fluxctl"}

			var resp protocol.RenderResponse
			if natsURL != "" {
				if secret == "" {
					secret = os.Getenv("FLUXDNA_RENDER_SECRET")
				}
				r, err := renderNATS(natsURL, token, secret, req, timeout)
				if err != nil {
					return err
				}
				resp = r
			} else if err := apiPost("/api/v1/render", req, &resp); err != nil {
				return err
			}

			if resp.Error != "" {
				return errors.New(resp.Error)
			}
			fmt.Print(resp.HTML)
			return nil
		},
	}

	cmd.Flags().Int64Var(&postID, "post-id", 0, "current post id")
	cmd.Flags().StringVar(&natsURL, "nats", "", "send the request over NATS at this URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("FLUXDNA_NATS_TOKEN"), "NATS auth token")
	cmd.Flags().StringVar(&secret, "secret", "", "render signing secret (default: $FLUXDNA_RENDER_SECRET)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "NATS request timeout")
	return cmd
}

func renderNATS(url, token, secret string, req protocol.RenderRequest, timeout time.Duration) (protocol.RenderResponse, error) {
	var resp protocol.RenderResponse

	var opts []nats.Option
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return resp, fmt.Errorf("connect to %s: %w", url, err)
	}
	defer nc.Close()

	if err := protocol.SignRender(&req, secret); err != nil {
		return resp, fmt.Errorf("sign request: %w", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	msg, err := nc.Request(protocol.SubjectRender(req.Phase), data, timeout)
	if err != nil {
		return resp, fmt.Errorf("render request: %w", err)
	}
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
