package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/httpsig"
)

// ContentTypeEvents is the media type of protocol event envelopes.
const ContentTypeEvents = "application/cloudevents+json; charset=UTF-8"

const maxResponseBytes = 10 << 20

// Remote calls the protocol endpoints of a partner or hub node. Every request
// carries a bearer token and an HTTP message signature.
type Remote struct {
	HTTPClient *http.Client
	Signer     *httpsig.Signer
}

// NewRemote returns a remote client signing with signer.
func NewRemote(httpClient *http.Client, signer *httpsig.Signer) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{HTTPClient: httpClient, Signer: signer}
}

// PostEvent sends an event envelope to an UpdateEvent endpoint.
func (r *Remote) PostEvent(ctx context.Context, endpoint, token string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindState, err, "invalid event endpoint %s", endpoint)
	}
	req.Header.Set("Content-Type", ContentTypeEvents)

	resp, err := r.do(req, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteError(resp, "event rejected by %s", endpoint)
	}

	log.Ctx(ctx).Debug().Str("endpoint", endpoint).Msg("Delivered event")
	return nil
}

// GetFootprint fetches one footprint from a GetFootprints endpoint and
// returns the raw footprint document found under "data".
func (r *Remote) GetFootprint(ctx context.Context, endpoint, token, id string) (json.RawMessage, error) {
	target := strings.TrimSuffix(endpoint, "/") + "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "invalid footprint endpoint %s", endpoint)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.do(req, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp, "footprint %s not served by %s", id, endpoint)
	}

	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "failed to decode footprint %s", id)
	}
	if len(doc.Data) == 0 || string(doc.Data) == "null" {
		return nil, apperr.State("footprint %s response has no data", id)
	}
	return doc.Data, nil
}

func (r *Remote) do(req *http.Request, token string, body []byte) (*http.Response, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.Signer != nil {
		if err := r.Signer.Sign(req, body); err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "request to %s failed", req.URL.Redacted())
	}
	return resp, nil
}

// remoteError turns a non-200 response into a StateError, keeping the
// partner's protocol error when the body carries one.
func remoteError(resp *http.Response, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var perr apperr.ProtocolError
	if err := json.Unmarshal(raw, &perr); err == nil && perr.Code != "" {
		return apperr.Wrap(apperr.KindState, &perr, "%s: %s", msg, resp.Status)
	}
	return apperr.State("%s: %s", msg, resp.Status)
}
