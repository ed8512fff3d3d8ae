package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	jsonrpcVersion = "2.0"
)

var (
	ErrMissingUrl   = errors.New("bad call missing argument url")
	ErrEmptyResult  = errors.New("rpc response has no result")
	ErrUnexpectedId = errors.New("rpc response id does not match request")

	// ErrOutcomeUnknown wraps failures after which the remote side may or may
	// not have executed the request.
	ErrOutcomeUnknown = errors.New("rpc outcome unknown")
)

// Client is a JSON RPC client over HTTP(s). Retries of failed requests are
// done by the underlying retryablehttp client. Only calls made with Call are
// retried, a Send is attempted once.
type Client struct {
	url        string
	httpClient *retryablehttp.Client
	timeout    time.Duration
	debug      bool
	nextId     int64
}

type singleAttemptKey struct{}

// checkRetry keeps the default policy for reads and never retries a request
// whose context is marked as single attempt.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if single, _ := ctx.Value(singleAttemptKey{}).(bool); single {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type request struct {
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	Id      int64       `json:"id"`
	JsonRpc string      `json:"jsonrpc"`
}

// ErrorCode is the code of an Error returned in a JSON-RPC response.
type ErrorCode int

type Error struct {
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%s", e.Code, e.Message)
}

type response struct {
	Id     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func NewClient(url string, timeout time.Duration, retryMax int, debug bool) (*Client, error) {
	if len(url) == 0 {
		return nil, ErrMissingUrl
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = checkRetry

	return &Client{
		url:        url,
		httpClient: retryClient,
		timeout:    timeout,
		debug:      debug,
	}, nil
}

// Call invokes method with params and decodes the result into result, which
// may be nil when the caller only needs success. Failed requests are retried,
// so method must be safe to repeat.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.call(ctx, method, params, result)
}

// Send invokes a method that changes state on the remote side. The request is
// made once: a lost response is reported as an error and never replayed.
func (c *Client) Send(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.call(context.WithValue(ctx, singleAttemptKey{}, true), method, params, result)
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rpcR := request{method, params, atomic.AddInt64(&c.nextId, 1), jsonrpcVersion}
	payloadBuffer := &bytes.Buffer{}
	if err := json.NewEncoder(payloadBuffer).Encode(rpcR); err != nil {
		return err
	}

	zap.L().With(zap.String("request", rpcR.Method), zap.String("params", fmt.Sprintf("%v", params))).Debug("RPC: Request")
	if c.debug {
		zap.L().With(zap.String("request", payloadBuffer.String())).Debug("RPC: Request")
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.url, payloadBuffer)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Add("Content-Type", "application/json;charset=utf-8")
	req.Header.Add("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("request", rpcR.Method)).Warn("RPC: Failure")
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}

	if c.debug {
		zap.L().With(zap.String("response", string(data))).Debug("RPC: Response")
	}

	var rr response
	if err := json.Unmarshal(data, &rr); err != nil {
		return fmt.Errorf("%w: rpc %s: decode response (status %d): %w", ErrOutcomeUnknown, method, resp.StatusCode, err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if rr.Id != rpcR.Id {
		return ErrUnexpectedId
	}
	if result == nil {
		return nil
	}
	if len(rr.Result) == 0 || string(rr.Result) == "null" {
		return ErrEmptyResult
	}

	return json.Unmarshal(rr.Result, result)
}
