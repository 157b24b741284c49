// Package gateway performs the outbound GETs against the records service and
// classifies their failures.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/core/observability"
)

const upstreamName = "nbn"

const (
	queryProblemPrefix  = "It looks like there is a problem with the query. Here are the details: "
	serverProblemPrefix = "It looks like there is a problem with the API. Here are the details: "
)

type Kind string

const (
	KindTransport  Kind = "transport"
	KindHTTPStatus Kind = "http_status"
	KindDecode     Kind = "decode"
)

// FetchError is returned for every failed fetch. StatusCode is zero unless
// the upstream answered.
type FetchError struct {
	Kind       Kind
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Classify maps the failure onto the caller-facing code. The status code is
// used when the upstream answered; otherwise the error text is searched for
// "400 Bad Request" and "500" the way transports report them.
func (e *FetchError) Classify() model.ErrorCode {
	if e.StatusCode != 0 {
		switch {
		case e.StatusCode == http.StatusBadRequest:
			return model.CodeQueryError
		case e.StatusCode >= 500:
			return model.CodeServerError
		}
		return model.CodeUnknown
	}
	if e.Err == nil {
		return model.CodeUnknown
	}
	detail := e.Err.Error()
	switch {
	case strings.Contains(detail, "500"):
		return model.CodeServerError
	case strings.Contains(detail, "400 Bad Request"):
		return model.CodeQueryError
	}
	return model.CodeUnknown
}

// Message is the human-readable text shown to the user.
func (e *FetchError) Message() string {
	switch e.Classify() {
	case model.CodeQueryError:
		return queryProblemPrefix + e.Error()
	case model.CodeServerError:
		return serverProblemPrefix + e.Error()
	}
	return e.Error()
}

// ErrorResult converts any fetch failure into an ERROR result.
func ErrorResult(err error, queryURL string) model.QueryResult {
	res := model.QueryResult{
		Status:   model.StatusError,
		QueryURL: queryURL,
		Code:     model.CodeUnknown,
		Message:  err.Error(),
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		res.Code = fe.Classify()
		res.Message = fe.Message()
		res.HTTPStatus = fe.StatusCode
	}
	return res
}

type Interface interface {
	Fetch(ctx context.Context, rawURL string, out any) error
}

type Gateway struct {
	logger   *slog.Logger
	client   *http.Client
	startNow func() time.Time // for tests
}

var _ Interface = (*Gateway)(nil)

func New(logger *slog.Logger, client *http.Client) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{logger: logger, client: client, startNow: time.Now}
}

// Fetch performs a single GET and decodes the JSON body into out. There is no
// retry; callers wanting a deadline put it on ctx.
func (g *Gateway) Fetch(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &FetchError{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := g.startNow()
	resp, err := g.client.Do(req)
	dur := time.Since(start)
	observability.ObserveUpstreamLatency(upstreamName, dur.Seconds())
	if err != nil {
		g.logger.Debug("upstream transport error", "url", rawURL, "err", err)
		// the url is already carried by FetchError
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return &FetchError{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	g.logger.Debug("upstream fetch done",
		"url", rawURL,
		"status", resp.StatusCode,
		"duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		err := fmt.Errorf("HTTP request failed! %s %s", resp.Proto, resp.Status)
		if s := strings.TrimSpace(string(b)); s != "" {
			err = fmt.Errorf("%w: %s", err, s)
		}
		return &FetchError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode, URL: rawURL, Err: err}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Kind: KindDecode, URL: rawURL, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}
