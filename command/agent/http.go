package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/hashicorp/go-hclog"
	"github.com/rs/cors"

	"github.com/gridllm/gridllm/coordinator/identity"
	"github.com/gridllm/gridllm/coordinator/structs"
)

const (
	// ErrInvalidMethod is used if the HTTP method is not supported
	ErrInvalidMethod = "Invalid method"

	// userHeader carries the authenticated user identity. The provider
	// that populates it sits in front of the coordinator.
	userHeader = "X-GridLLM-User"
)

// allowCORS sets permissive CORS headers for the read-only endpoints
var allowCORS = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{"HEAD", "GET"},
	AllowedHeaders: []string{"*"},
})

// HTTPServer wraps an Agent and exposes it over HTTP
type HTTPServer struct {
	agent      *Agent
	mux        *http.ServeMux
	listener   net.Listener
	listenerCh chan struct{}
	logger     hclog.Logger
	verifier   *identity.Verifier
	Addr       string
}

// NewHTTPServer starts a new HTTP server over the agent
func NewHTTPServer(agent *Agent, config *Config) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.BindAddr, config.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to start HTTP listener: %w", err)
	}

	mux := http.NewServeMux()
	srv := &HTTPServer{
		agent:      agent,
		mux:        mux,
		listener:   ln,
		listenerCh: make(chan struct{}),
		logger:     agent.logger.Named("http"),
		verifier:   identity.NewVerifier(agent.coordinator.Config().SignatureWindow),
		Addr:       ln.Addr().String(),
	}
	srv.registerHandlers(config.EnableDebug)

	// Handle requests with gzip compression
	gzip, err := gziphandler.GzipHandlerWithOpts(gziphandler.MinSize(0))
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(srv.listenerCh)
		http.Serve(ln, gzip(mux))
	}()

	return srv, nil
}

// Shutdown closes the listener and waits for the serve loop to return
func (s *HTTPServer) Shutdown() {
	if s != nil {
		s.logger.Debug("shutting down http server")
		s.listener.Close()
		<-s.listenerCh // block until http.Serve has returned.
	}
}

// registerHandlers attaches the endpoint handlers to the mux
func (s *HTTPServer) registerHandlers(enableDebug bool) {
	s.mux.HandleFunc("/jobs", s.wrap(s.JobsRequest))
	s.mux.Handle("/jobs/", wrapCORS(s.wrap(s.JobSpecificRequest)))

	s.mux.HandleFunc("/nodes", s.wrap(s.NodesRequest))
	s.mux.HandleFunc("/nodes/claim", s.wrap(s.NodeClaimRequest))
	s.mux.HandleFunc("/nodes/ping", s.wrap(s.NodePingRequest))
	s.mux.Handle("/nodes/public", wrapCORS(s.wrap(s.NodePublicRequest)))
	s.mux.HandleFunc("/nodes/", s.wrap(s.NodeSpecificRequest))

	if enableDebug {
		s.mux.HandleFunc("/debug/pprof/", pprof.Index)
		s.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		s.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		s.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		s.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
}

// HTTPCodedError carries an HTTP status code alongside the error
type HTTPCodedError interface {
	error
	Code() int
}

// CodedError builds an HTTPCodedError
func CodedError(c int, s string) HTTPCodedError {
	return &codedError{s, c}
}

type codedError struct {
	s    string
	code int
}

func (e *codedError) Error() string {
	return e.s
}

func (e *codedError) Code() int {
	return e.code
}

// wrap turns an (obj, error) handler into an http.HandlerFunc, mapping core
// sentinel errors onto status codes and encoding everything as JSON.
func (s *HTTPServer) wrap(handler func(resp http.ResponseWriter, req *http.Request) (interface{}, error)) func(resp http.ResponseWriter, req *http.Request) {
	return func(resp http.ResponseWriter, req *http.Request) {
		reqURL := req.URL.String()
		start := time.Now()
		defer func() {
			s.logger.Debug("request complete", "method", req.Method,
				"path", reqURL, "duration", time.Since(start))
		}()

		obj, err := handler(resp, req)
		if err != nil {
			code := errorCode(err)
			if code >= 500 {
				s.logger.Error("request failed", "method", req.Method,
					"path", reqURL, "error", err)
			}
			resp.Header().Set("Content-Type", "application/json")
			resp.WriteHeader(code)
			json.NewEncoder(resp).Encode(&structs.ErrorResponse{Success: false, Error: err.Error()})
			return
		}

		if obj != nil {
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(obj); err != nil {
				s.logger.Error("failed to encode response", "error", err)
				resp.WriteHeader(http.StatusInternalServerError)
				return
			}
			resp.Header().Set("Content-Type", "application/json")
			resp.Write(buf.Bytes())
		}
	}
}

// errorCode maps an error onto its HTTP status
func errorCode(err error) int {
	var coded HTTPCodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	switch {
	case errors.Is(err, structs.ErrMissingPrompt),
		errors.Is(err, structs.ErrMissingSignatureFields):
		return http.StatusBadRequest
	case errors.Is(err, structs.ErrStaleTimestamp),
		errors.Is(err, structs.ErrInvalidSignature),
		errors.Is(err, structs.ErrPublicKeyMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, structs.ErrPermissionDenied),
		errors.Is(err, structs.ErrNotLockHolder):
		return http.StatusForbidden
	case errors.Is(err, structs.ErrJobNotFound),
		errors.Is(err, structs.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, structs.ErrNodeClaimed),
		errors.Is(err, structs.ErrFingerprintCollision),
		errors.Is(err, structs.ErrJobTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body
func decodeBody(req *http.Request, out interface{}) error {
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(out); err != nil {
		return CodedError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// parseUser extracts the authenticated user identity set by the fronting
// auth provider
func (s *HTTPServer) parseUser(req *http.Request) (string, error) {
	userID := req.Header.Get(userHeader)
	if userID == "" {
		return "", CodedError(http.StatusUnauthorized, "missing user identity")
	}
	return userID, nil
}

// verifyNode checks a request's signature envelope and returns the proven
// node identity
func (s *HTTPServer) verifyNode(env *structs.SignatureEnvelope) (*identity.Verified, error) {
	return s.verifier.VerifyEnvelope(env)
}

// wrapCORS wraps a HandlerFunc in allowCORS and returns an http.Handler
func wrapCORS(f func(http.ResponseWriter, *http.Request)) http.Handler {
	return allowCORS.Handler(http.HandlerFunc(f))
}
