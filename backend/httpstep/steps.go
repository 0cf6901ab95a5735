package httpstep

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/haitch/go-asyncstep"
)

// Context runs steps against a lazily built Client.
type Context = asyncstep.StepContext[*Client]

// NewContext builds a step context whose client is created on first use and reaped when idle.
func NewContext(ex *asyncstep.Executor, clientOptions []ClientOptionPreparer, containerOptions ...asyncstep.ContainerOptionPreparer) (*Context, error) {
	container, err := asyncstep.NewContainer[*Client]("http client", func(context.Context) (*Client, error) {
		return NewClient(clientOptions...)
	}, containerOptions...)
	if err != nil {
		return nil, err
	}
	return asyncstep.NewStepContext(ex, container), nil
}

// RequestBuilder creates the request of one attempt, it is invoked again on every poll.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

func Get(url string) RequestBuilder {
	return NewRequest(http.MethodGet, url, "", nil)
}

func NewRequest(method, url, body string, header http.Header) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		return req, nil
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

func (r *Response) String() string {
	return fmt.Sprintf("HTTP %d (%d bytes)", r.StatusCode, len(r.Body))
}

// ResponseBody is the artifact published on the bus for every response received by ResponseOf.
type ResponseBody string

const emptyBody ResponseBody = "<EMPTY STRING>"

// ResponseOf sends the request built by req until the response matches the step criteria.
// The body of the last response is captured as a ResponseBody, following the capture policy of the step.
func ResponseOf(ctx context.Context, sc *Context, description string, req RequestBuilder, optionDecorators ...asyncstep.ExecutionOptionPreparer) (*Response, error) {
	if req == nil {
		return nil, asyncstep.ErrConfiguration.WithMessage(fmt.Sprintf(asyncstep.MsgNilProducer, description))
	}

	var last *Response
	resp, err := asyncstep.GetFrom(ctx, sc, description, func(ctx context.Context, client *Client) (*Response, error) {
		resp, err := send(ctx, client, req)
		if resp != nil {
			last = resp
		}
		return resp, err
	}, optionDecorators...)

	if last != nil {
		sc.Executor().CaptureArtifact(ctx, description, err == nil, bodyOf(last), optionDecorators...)
	}
	return resp, err
}

func bodyOf(resp *Response) ResponseBody {
	if strings.TrimSpace(resp.Body) == "" {
		return emptyBody
	}
	return ResponseBody(resp.Body)
}

// StatusCodeOf sends the request built by req until its status code matches the step criteria.
func StatusCodeOf(ctx context.Context, sc *Context, description string, req RequestBuilder, optionDecorators ...asyncstep.ExecutionOptionPreparer) (int, error) {
	if req == nil {
		return 0, asyncstep.ErrConfiguration.WithMessage(fmt.Sprintf(asyncstep.MsgNilProducer, description))
	}

	return asyncstep.GetFrom(ctx, sc, description, func(ctx context.Context, client *Client) (int, error) {
		resp, err := send(ctx, client, req)
		if err != nil {
			return 0, err
		}
		return resp.StatusCode, nil
	}, optionDecorators...)
}

func send(ctx context.Context, client *Client, req RequestBuilder) (*Response, error) {
	request, err := req(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(ctx, request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: string(body)}, nil
}

// StatusIs matches responses with the given status code.
func StatusIs(code int) asyncstep.Criterion[*Response] {
	return asyncstep.Property("status code", func(r *Response) int { return r.StatusCode },
		asyncstep.Condition(fmt.Sprintf("is %d", code), func(c int) bool { return c == code }))
}

func BodyContains(fragment string) asyncstep.Criterion[*Response] {
	return asyncstep.Property("body", func(r *Response) string { return r.Body },
		asyncstep.Condition(fmt.Sprintf("contains %q", fragment), func(b string) bool { return strings.Contains(b, fragment) }))
}
