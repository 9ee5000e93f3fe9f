package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/morezero/inference-client/internal/config"
	"github.com/morezero/inference-client/pkg/signature"
	"github.com/morezero/inference-client/pkg/transport"
)

const logPrefix = "stubserver:server"

// Options configures a Server.
type Options struct {
	// NC is used for COMMS request/reply. Optional when only gRPC is served.
	NC            *comms.Conn
	SubjectPrefix string
	// PAT, when set, is required on every request.
	PAT     string
	Handler transport.Handler
	// HTTPAddr serves /health, /metrics and /openapi/. Empty disables HTTP.
	HTTPAddr string
	// GRPCAddr serves the gRPC transport. Empty disables gRPC.
	GRPCAddr       string
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

// Server serves a transport.Handler over COMMS, gRPC and HTTP.
type Server struct {
	opts       Options
	disp       *Dispatcher
	subs       []*comms.Subscription
	httpServer *http.Server
	httpLis    net.Listener
	grpcServer *grpc.Server
	grpcLis    net.Listener
}

// New creates a Server. Call Start to begin serving.
func New(opts Options) *Server {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = transport.DefaultSubjectPrefix
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 25 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{opts: opts, disp: NewDispatcher(opts.Handler)}
}

// Start subscribes and starts listeners. It returns once everything is
// accepting requests.
func (s *Server) Start(ctx context.Context) error {
	if s.opts.NC != nil {
		for _, op := range []transport.Operation{transport.OpPredict, transport.OpWorkflow, transport.OpDescribe} {
			if err := s.subscribe(ctx, op); err != nil {
				s.Close(ctx)
				return err
			}
		}
	}

	if s.opts.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.opts.GRPCAddr)
		if err != nil {
			s.Close(ctx)
			return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.opts.GRPCAddr, err)
		}
		s.grpcLis = lis
		s.grpcServer = transport.NewGRPCServer(s.opts.Handler, s.opts.PAT)
		go func() {
			slog.Info(fmt.Sprintf("%s - gRPC listening on %s", logPrefix, lis.Addr()))
			if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				slog.Error(fmt.Sprintf("%s - gRPC server error: %v", logPrefix, err))
			}
		}()
	}

	if s.opts.HTTPAddr != "" {
		lis, err := net.Listen("tcp", s.opts.HTTPAddr)
		if err != nil {
			s.Close(ctx)
			return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.opts.HTTPAddr, err)
		}
		s.httpLis = lis
		s.httpServer = &http.Server{Handler: s.mux()}
		go func() {
			slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, lis.Addr()))
			if err := s.httpServer.Serve(lis); err != http.ErrServerClosed {
				slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
			}
		}()
	}
	return nil
}

// HTTPAddr returns the bound HTTP address, or "" when HTTP is disabled.
func (s *Server) HTTPAddr() string {
	if s.httpLis == nil {
		return ""
	}
	return s.httpLis.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s.grpcLis == nil {
		return ""
	}
	return s.grpcLis.Addr().String()
}

func (s *Server) subscribe(ctx context.Context, op transport.Operation) error {
	subject := transport.OperationWildcard(s.opts.SubjectPrefix, op)
	sub, err := s.opts.NC.Subscribe(subject, func(msg *comms.Msg) {
		var reply *transport.Reply
		if s.opts.PAT != "" && strings.TrimSpace(msg.Header.Get(transport.AuthHeader)) != transport.AuthValue(s.opts.PAT) {
			reply = errorReply("", "UNAUTHORIZED", "missing or invalid authorization", false)
		} else {
			reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
			reply = s.disp.Dispatch(reqCtx, op, msg.Data)
		}

		data, err := transport.Encode(reply)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", logPrefix, err))
			return
		}
		msg.Respond(data)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	s.subs = append(s.subs, sub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	return nil
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		commsStatus := "disabled"
		if s.opts.NC != nil {
			commsStatus = "connected"
			if !s.opts.NC.IsConnected() {
				commsStatus = "disconnected"
				status = "unhealthy"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"comms":     commsStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/openapi/", s.handleOpenAPI())
	return mux
}

// Close unsubscribes and stops listeners.
func (s *Server) Close(ctx context.Context) {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Run starts a stub server from cfg, blocks until a shutdown signal, then
// cleans up.
func Run(cfg *config.Config) error {
	slog.Info(fmt.Sprintf("%s - Starting inference stub server", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src signature.Source
	if cfg.SignatureFile != "" {
		file, err := signature.LoadFile(cfg.SignatureFile)
		if err != nil {
			return fmt.Errorf("%s - failed to load signatures: %w", logPrefix, err)
		}
		src = signature.NewFileSource(file)
	}

	reg := prometheus.NewRegistry()
	backend := NewBackend(BackendOpts{Signatures: src, DeployingCalls: cfg.DeployingCalls, Registerer: reg})

	opts := Options{
		SubjectPrefix:  cfg.SubjectPrefix,
		PAT:            cfg.PAT,
		Handler:        backend,
		HTTPAddr:       cfg.MetricsAddr,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
	}
	if cfg.Transport == config.TransportGRPC {
		opts.GRPCAddr = cfg.GRPCAddr
	} else {
		if cfg.EmbedComms {
			ns, err := StartEmbeddedComms(cfg.COMMSURL)
			if err != nil {
				return err
			}
			defer func() {
				ns.Shutdown()
				ns.WaitForShutdown()
			}()
		}
		nc, err := transport.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Drain()
		opts.NC = nc
		slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, cfg.COMMSURL))
	}

	s := New(opts)
	if err := s.Start(ctx); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Stub server is ready (deploying calls per resource: %d)", logPrefix, cfg.DeployingCalls))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	s.Close(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
