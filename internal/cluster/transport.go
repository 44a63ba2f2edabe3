package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// oneShotClient is used for client<->server operations: one request per
// connection, closed after the response. Keep-alives are disabled on its
// transport so no connection is reused between calls.
var oneShotClient = &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}

// PostJSON sends a JSON-encoded POST request and decodes the JSON response
// into out (nil to ignore the body): marshal, send, check status, decode.
func PostJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	if client == nil {
		client = oneShotClient
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON sends a GET request and decodes the JSON response into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	if client == nil {
		client = oneShotClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LongLivedClient returns an *http.Client configured for a persistent
// control connection (coordinator<->server, server<->server peer link):
// keep-alives enabled, so connections are reused across requests. The
// client does not serialize requests itself: http.Client allows
// concurrent use and may open more than one connection to a host when
// calls overlap. ControlClient serializes its sends through a mutex; a
// server's peer forwards and coordinator messages are not serialized.
func LongLivedClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
