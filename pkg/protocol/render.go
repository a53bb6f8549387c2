package protocol

// RenderRequest asks the daemon to run a page phase. It is the body of a
// POST /api/v1/render call and of a fluxdna.render.<phase> request.
type RenderRequest struct {
	Phase     string `json:"phase"`
	PostID    int64  `json:"post_id,omitempty"`
	Source    string `json:"source,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// RenderResponse carries the rendered HTML or the error.
type RenderResponse struct {
	Phase string `json:"phase"`
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}
