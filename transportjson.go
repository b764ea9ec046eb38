//go:build json

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dirmi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsonrpc "github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/dirmi/info"
)

// bootstrapRequest/-Response are the JSON-RPC payload shapes for
// fetching RemoteInfo the first time a session's registry encounters
// an unknown type -- spec.md's importRemote fallback (SPEC_FULL.md
// §4.3/§8), generalized from the teacher's SendJSONRequest helper into
// a single-purpose HTTP/JSON-RPC bootstrap call rather than a general
// transport, since the invocation channels themselves stay on the raw
// socket even when this build tag is set.
type bootstrapRequest struct {
	TypeID uint64 `json:"typeId"`
}

type bootstrapResponse struct {
	Info *info.RemoteInfo `json:"info"`
}

const (
	bootstrapMaxRetries    = 3
	bootstrapRetryBaseWait = 100 * time.Millisecond
)

// FetchRemoteInfo asks uri's JSON-RPC endpoint for the RemoteInfo of
// typeID, retrying transient network failures with exponential
// backoff. It is meant to be wired as a session.Session type-cache
// miss handler, not called on the invocation hot path.
func FetchRemoteInfo(ctx context.Context, uri *url.URL, typeID uint64) (*info.RemoteInfo, error) {
	body, err := jsonrpc.EncodeClientRequest("Dirmi.RemoteInfo", bootstrapRequest{TypeID: typeID})
	if err != nil {
		return nil, fmt.Errorf("dirmi: encode bootstrap request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < bootstrapMaxRetries; attempt++ {
		if attempt > 0 {
			wait := bootstrapRetryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("dirmi: build bootstrap request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drainAndClose(resp.Body)
			return nil, fmt.Errorf("dirmi: bootstrap fetch: status %d", resp.StatusCode)
		}

		var out bootstrapResponse
		if err := jsonrpc.DecodeClientResponse(resp.Body, &out); err != nil {
			drainAndClose(resp.Body)
			return nil, fmt.Errorf("dirmi: decode bootstrap response: %w", err)
		}
		drainAndClose(resp.Body)
		return out.Info, nil
	}
	return nil, fmt.Errorf("dirmi: bootstrap fetch failed after %d attempts: %w", bootstrapMaxRetries, lastErr)
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
