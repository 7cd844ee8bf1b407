// Package client reaches the fragment server over HTTP. Client satisfies
// the exchange engine's Store contract, so a visitor session can run
// against the remote pool exactly as it would against the repository.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/errs"
	"fragmentone/pkg/logger"

	"github.com/sony/gobreaker"
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Code, e.Body)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	breaker *gobreaker.CircuitBreaker
}

func New(baseURL, token string) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fragment-server",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Sugar.Warnf("Circuit breaker '%s' state changed from %v to %v", name, from, to)
		},
		// Client mistakes say nothing about the server's health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil
		},
	})
	return c
}

// Append ignores authorID on the wire: the server takes the author from the token.
func (c *Client) Append(ctx context.Context, authorID, text string) (model.Fragment, error) {
	var f model.Fragment
	err := c.do(ctx, http.MethodPost, "/api/fragments", nil, model.CreateFragmentRequest{Text: text}, &f)
	if err != nil {
		return model.Fragment{}, errs.Write("append", err)
	}
	if f.AuthorID != authorID {
		logger.Sugar.Warnf("Server stored fragment %s under %s, session is %s", f.ID, f.AuthorID, authorID)
	}
	return f, nil
}

func (c *Client) FindSince(ctx context.Context, since time.Time) ([]model.Fragment, error) {
	var fragments []model.Fragment
	q := url.Values{"since": {since.Format(time.RFC3339Nano)}}
	if err := c.do(ctx, http.MethodGet, "/api/fragments", q, nil, &fragments); err != nil {
		return nil, errs.Read("find since", err)
	}
	return fragments, nil
}

// FindByAuthorSince only supports the caller's own author ID.
func (c *Client) FindByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.Fragment, error) {
	var fragments []model.Fragment
	q := url.Values{"since": {since.Format(time.RFC3339Nano)}}
	if err := c.do(ctx, http.MethodGet, "/api/fragments/mine", q, nil, &fragments); err != nil {
		return nil, errs.Read("find by author since", err)
	}
	return fragments, nil
}

func (c *Client) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var resp model.DeleteResponse
	q := url.Values{"before": {before.Format(time.RFC3339Nano)}}
	if err := c.do(ctx, http.MethodDelete, "/api/fragments", q, nil, &resp); err != nil {
		return 0, errs.Write("delete before", err)
	}
	return resp.Deleted, nil
}

// SignInAnonymously asks the server for a new identity. It needs no token.
func (c *Client) SignInAnonymously(ctx context.Context) (model.AnonymousSignInResponse, error) {
	var resp model.AnonymousSignInResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/anonymous", nil, nil, &resp)
	return resp, err
}

// Refresh trades an expired token for a new one naming the same author.
func (c *Client) Refresh(ctx context.Context, token string) (model.AnonymousSignInResponse, error) {
	var resp model.AnonymousSignInResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, model.RefreshRequest{Token: token}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, in, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
