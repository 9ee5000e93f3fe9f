package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const commsLogPrefix = "transport:comms_client"

// AuthHeader carries the personal access token on COMMS requests.
const AuthHeader = "Authorization"

// CommsClientOpts configures a CommsClient.
type CommsClientOpts struct {
	// SubjectPrefix defaults to DefaultSubjectPrefix.
	SubjectPrefix string
	PAT           string
	// Timeout bounds each request when ctx has no deadline. Defaults to 25s.
	Timeout time.Duration
}

// CommsClient sends envelopes over COMMS request/reply.
type CommsClient struct {
	nc      *comms.Conn
	prefix  string
	pat     string
	timeout time.Duration
	owned   bool
}

// NewCommsClient wraps an existing connection. Close does not close nc.
func NewCommsClient(nc *comms.Conn, opts *CommsClientOpts) *CommsClient {
	c := &CommsClient{nc: nc, prefix: DefaultSubjectPrefix, timeout: 25 * time.Second}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			c.prefix = opts.SubjectPrefix
		}
		if opts.Timeout > 0 {
			c.timeout = opts.Timeout
		}
		c.pat = opts.PAT
	}
	return c
}

// DialComms connects to url and returns a client that owns the connection.
func DialComms(url, name string, opts *CommsClientOpts) (*CommsClient, error) {
	nc, err := Connect(url, name)
	if err != nil {
		return nil, err
	}
	c := NewCommsClient(nc, opts)
	c.owned = true
	return c, nil
}

// Predict sends a predict or workflow request.
func (c *CommsClient) Predict(ctx context.Context, req *Request) (*Response, error) {
	var resp Response
	if err := c.request(ctx, RequestSubject(c.prefix, req), req.ID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe asks a resource for its method signatures.
func (c *CommsClient) Describe(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	var resp DescribeResponse
	if err := c.request(ctx, DescribeSubject(c.prefix, req), req.ID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close drains the connection when the client owns it.
func (c *CommsClient) Close() error {
	if !c.owned {
		return nil
	}
	return c.nc.Drain()
}

func (c *CommsClient) request(ctx context.Context, subject, id string, in, out interface{}) error {
	payload, err := Encode(in)
	if err != nil {
		return fmt.Errorf("%s - failed to encode request: %w", commsLogPrefix, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := comms.NewMsg(subject)
	msg.Data = payload
	if c.pat != "" {
		msg.Header.Set(AuthHeader, AuthValue(c.pat))
	}

	slog.Debug(fmt.Sprintf("%s - request id=%s subject=%s", commsLogPrefix, id, subject))
	reply, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%s - %s did not respond: %w", commsLogPrefix, subject, err)
	}

	var env struct {
		ID     string          `json:"id"`
		Ok     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  *ErrorDetail    `json:"error,omitempty"`
	}
	if err := Decode(reply.Data, &env); err != nil {
		return fmt.Errorf("%s - failed to decode reply: %w", commsLogPrefix, err)
	}
	if !env.Ok {
		if env.Error != nil {
			return fmt.Errorf("%s - %s: %s", commsLogPrefix, env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("%s - request %s rejected", commsLogPrefix, id)
	}
	if err := Decode(env.Result, out); err != nil {
		return fmt.Errorf("%s - failed to decode result: %w", commsLogPrefix, err)
	}
	return nil
}
