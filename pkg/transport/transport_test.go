package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/parts"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/signature"
)

const transportTestPrefix = "transport:transport_test"

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", transportTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", transportTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", transportTestPrefix, err)
	}

	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

// fakeHandler answers with fixed envelopes and records what it received.
type fakeHandler struct {
	predictResp  *Response
	describeResp *DescribeResponse
	err          error
	gotPredict   *Request
	gotDescribe  *DescribeRequest
}

func (f *fakeHandler) Predict(_ context.Context, req *Request) (*Response, error) {
	f.gotPredict = req
	return f.predictResp, f.err
}

func (f *fakeHandler) Describe(_ context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	f.gotDescribe = req
	return f.describeResp, f.err
}

func sampleRequest() *Request {
	s := "hello"
	return &Request{
		ID:         "req-1",
		Operation:  OpPredict,
		UserAppID:  UserAppID{UserID: "meta", AppID: "Llama-3"},
		ResourceID: "llama.3-8b",
		Method:     "predict",
		Inputs: []Input{{Data: parts.WireData{Parts: []parts.Part{
			{ID: "prompt", Data: &parts.Scalar{Slot: parts.SlotString, String: s}},
		}}}},
	}
}

func TestSubjects(t *testing.T) {
	req := sampleRequest()
	if got, want := RequestSubject("inference", req), "inference.predict.meta.Llama-3.llama_3-8b"; got != want {
		t.Errorf("%s - RequestSubject() = %q, want %q", transportTestPrefix, got, want)
	}
	d := &DescribeRequest{UserAppID: req.UserAppID, ResourceID: "m"}
	if got, want := DescribeSubject("x", d), "x.describe.meta.Llama-3.m"; got != want {
		t.Errorf("%s - DescribeSubject() = %q, want %q", transportTestPrefix, got, want)
	}
	if got := OperationWildcard("inference", OpPredict); got != "inference.predict.>" {
		t.Errorf("%s - OperationWildcard() = %q", transportTestPrefix, got)
	}
}

func TestCommsClient_Predict(t *testing.T) {
	nc, cleanup := startTestServer(t, 14251)
	defer cleanup()

	gotAuth := make(chan string, 1)
	sub, err := nc.Subscribe(OperationWildcard(DefaultSubjectPrefix, OpPredict), func(msg *comms.Msg) {
		gotAuth <- msg.Header.Get(AuthHeader)
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("%s - failed to decode request: %v", transportTestPrefix, err)
			return
		}
		data, _ := json.Marshal(&Reply{ID: req.ID, Ok: true, Result: &Response{
			ID:      req.ID,
			Status:  Status{Code: StatusSuccess, Description: "Ok"},
			Outputs: []Output{{Data: req.Inputs[0].Data}},
		}})
		msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe: %v", transportTestPrefix, err)
	}
	defer sub.Unsubscribe()

	client := NewCommsClient(nc, &CommsClientOpts{PAT: "secret"})
	resp, err := client.Predict(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", transportTestPrefix, err)
	}
	if resp.Status.Code != StatusSuccess || resp.ID != "req-1" {
		t.Errorf("%s - unexpected response %+v", transportTestPrefix, resp)
	}
	echoed := resp.Outputs[0].Data.Parts
	if len(echoed) != 1 || echoed[0].ID != "prompt" {
		t.Fatalf("%s - unexpected echoed parts %+v", transportTestPrefix, echoed)
	}
	if s := echoed[0].Data.(*parts.Scalar); s.String != "hello" {
		t.Errorf("%s - echoed prompt = %+v", transportTestPrefix, s)
	}
	if auth := <-gotAuth; auth != "Key secret" {
		t.Errorf("%s - authorization header = %q", transportTestPrefix, auth)
	}
	if err := client.Close(); err != nil {
		t.Errorf("%s - Close on a borrowed connection should be a no-op: %v", transportTestPrefix, err)
	}
}

func TestCommsClient_RejectedReply(t *testing.T) {
	nc, cleanup := startTestServer(t, 14252)
	defer cleanup()

	sub, err := nc.Subscribe(OperationWildcard(DefaultSubjectPrefix, OpDescribe), func(msg *comms.Msg) {
		data, _ := json.Marshal(&Reply{Ok: false, Error: &ErrorDetail{Code: "UNAUTHORIZED", Message: "bad key"}})
		msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe: %v", transportTestPrefix, err)
	}
	defer sub.Unsubscribe()

	client := NewCommsClient(nc, nil)
	_, err = client.Describe(context.Background(), &DescribeRequest{ID: "d", UserAppID: UserAppID{UserID: "u", AppID: "a"}, ResourceID: "m"})
	if err == nil || !strings.Contains(err.Error(), "UNAUTHORIZED") {
		t.Fatalf("%s - expected UNAUTHORIZED error, got %v", transportTestPrefix, err)
	}
}

func TestCommsClient_NoResponder(t *testing.T) {
	nc, cleanup := startTestServer(t, 14253)
	defer cleanup()

	client := NewCommsClient(nc, &CommsClientOpts{Timeout: 200 * time.Millisecond})
	if _, err := client.Predict(context.Background(), sampleRequest()); err == nil {
		t.Fatalf("%s - expected error with no responder", transportTestPrefix)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := Connect("invalid://not-a-comms-server", "test-client")
	if err == nil {
		if nc != nil {
			nc.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", transportTestPrefix)
	}
}

func dialBufconn(t *testing.T, h Handler, serverPAT, clientPAT string) (*GRPCClient, func()) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(h, serverPAT)
	go srv.Serve(lis)

	client, err := DialGRPC("passthrough:///bufnet", &GRPCClientOpts{
		PAT:      clientPAT,
		Insecure: true,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	if err != nil {
		t.Fatalf("%s - failed to dial: %v", transportTestPrefix, err)
	}
	return client, func() {
		client.Close()
		srv.Stop()
	}
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	h := &fakeHandler{
		predictResp:  &Response{ID: "req-1", Status: Status{Code: StatusModelDeploying, Description: "deploying"}},
		describeResp: &DescribeResponse{Status: Status{Code: StatusSuccess}, Methods: []signature.Method{{Name: "predict"}}},
	}
	client, cleanup := dialBufconn(t, h, "secret", "secret")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Predict(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", transportTestPrefix, err)
	}
	if resp.Status.Code != StatusModelDeploying {
		t.Errorf("%s - status = %d, want %d", transportTestPrefix, resp.Status.Code, StatusModelDeploying)
	}
	if h.gotPredict == nil || h.gotPredict.ResourceID != "llama.3-8b" {
		t.Errorf("%s - server received %+v", transportTestPrefix, h.gotPredict)
	}

	d, err := client.Describe(ctx, &DescribeRequest{ID: "d"})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", transportTestPrefix, err)
	}
	if len(d.Methods) != 1 || d.Methods[0].Name != "predict" {
		t.Errorf("%s - describe = %+v", transportTestPrefix, d)
	}
}

func TestGRPCClient_Unauthenticated(t *testing.T) {
	client, cleanup := dialBufconn(t, &fakeHandler{}, "secret", "wrong")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Predict(ctx, sampleRequest()); err == nil {
		t.Fatalf("%s - expected unauthenticated error", transportTestPrefix)
	}
}

func TestDescribeSource(t *testing.T) {
	r := ref.Ref{UserID: "u", AppID: "a", Kind: ref.KindModel, ResourceID: "m", VersionID: "v1"}

	t.Run("success", func(t *testing.T) {
		h := &fakeHandler{describeResp: &DescribeResponse{
			Status:  Status{Code: StatusSuccess},
			Version: "1.2.0",
			Methods: []signature.Method{{Name: "predict"}, {Name: "generate"}},
		}}
		set, err := (&DescribeSource{Handler: h}).Describe(context.Background(), r)
		if err != nil {
			t.Fatalf("%s - unexpected error: %v", transportTestPrefix, err)
		}
		if set.Version != "1.2.0" || len(set.Methods) != 2 || set.Resource != "u/a/models/m@v1" {
			t.Errorf("%s - set = %+v", transportTestPrefix, set)
		}
		if h.gotDescribe.VersionID != "v1" || h.gotDescribe.ID == "" {
			t.Errorf("%s - request = %+v", transportTestPrefix, h.gotDescribe)
		}
	})

	t.Run("remote status", func(t *testing.T) {
		h := &fakeHandler{describeResp: &DescribeResponse{Status: Status{Code: 21200, Description: "not found"}}}
		_, err := (&DescribeSource{Handler: h}).Describe(context.Background(), r)
		if !errors.Is(err, apierr.ErrRemoteStatus) {
			t.Fatalf("%s - expected REMOTE_STATUS_FAILURE, got %v", transportTestPrefix, err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		cause := errors.New("connection refused")
		_, err := (&DescribeSource{Handler: &fakeHandler{err: cause}}).Describe(context.Background(), r)
		if !errors.Is(err, apierr.ErrTransport) || !errors.Is(err, cause) {
			t.Fatalf("%s - expected TRANSPORT_FAILURE wrapping the cause, got %v", transportTestPrefix, err)
		}
	})
}
