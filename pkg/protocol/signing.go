package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// signedRender is the subset of RenderRequest covered by the signature.
type signedRender struct {
	Phase  string `json:"phase"`
	PostID int64  `json:"post_id"`
	Source string `json:"source"`
}

func renderMAC(req *RenderRequest, secret string) (string, error) {
	canonical, err := json.Marshal(signedRender{
		Phase:  req.Phase,
		PostID: req.PostID,
		Source: req.Source,
	})
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// SignRender sets an HMAC-SHA256 signature on req. An empty secret leaves
// it unsigned.
func SignRender(req *RenderRequest, secret string) error {
	if secret == "" {
		return nil
	}
	sig, err := renderMAC(req, secret)
	if err != nil {
		return err
	}
	req.Signature = sig
	return nil
}

// VerifyRender checks the signature on req. With an empty secret every
// request passes; with a secret an unsigned request fails.
func VerifyRender(req *RenderRequest, secret string) bool {
	if secret == "" {
		return true
	}
	if req.Signature == "" {
		return false
	}
	expected, err := renderMAC(req, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(req.Signature))
}
