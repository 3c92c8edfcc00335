package verifyapi

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentient-agi/enclave-trust/internal/attestation"
	"github.com/sentient-agi/enclave-trust/internal/vrf"
)

// shutdownGrace matches spec.md §5's "10-second graceful shutdown" for the
// HTTP/HTTPS servers.
const shutdownGrace = 10 * time.Second

// Server exposes the verification API over a plaintext redirect listener
// and a TLS listener (spec.md §6).
type Server struct {
	Assembler *attestation.Assembler
	Suite     vrf.Suite
	Logger    *zap.SugaredLogger
}

// New builds a Server. suite must match the running pipeline's configured
// vrf_cipher_suite, since VerifyProof needs it to parse public key bytes.
func New(assembler *attestation.Assembler, suite vrf.Suite, logger *zap.SugaredLogger) *Server {
	return &Server{Assembler: assembler, Suite: suite, Logger: logger}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/supply/", s.handleSupply)
	mux.HandleFunc("/verify-proof", s.handleVerifyProof)
	mux.HandleFunc("/verify-document", s.handleVerifyDocument)
	return mux
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/supply/")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	rec, ok := s.Assembler.Get(path)
	if !ok {
		http.Error(w, "no attestation for path", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type verifyProofRequest struct {
	UserDataHex  string `json:"user_data_hex"`
	PublicKeyHex string `json:"vrf_public_key_hex"`
	ProofHex     string `json:"proof_hex"`
}

type verifyProofResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req verifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	userData, err := hex.DecodeString(req.UserDataHex)
	if err != nil {
		http.Error(w, "malformed user_data_hex", http.StatusBadRequest)
		return
	}
	pubKey, err := hex.DecodeString(req.PublicKeyHex)
	if err != nil {
		http.Error(w, "malformed vrf_public_key_hex", http.StatusBadRequest)
		return
	}
	proof, err := hex.DecodeString(req.ProofHex)
	if err != nil {
		http.Error(w, "malformed proof_hex", http.StatusBadRequest)
		return
	}

	valid, err := VerifyProof(s.Suite, userData, pubKey, proof)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warnw("vrf proof verification error", "err", err)
		}
		writeJSON(w, http.StatusOK, verifyProofResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, verifyProofResponse{Valid: valid})
}

func (s *Server) handleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	verdict, err := ParseAndValidate(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed document: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run starts the redirect listener on httpAddr and the TLS listener on
// httpsAddr, serving until ctx is canceled, then performs a
// shutdownGrace-bounded graceful shutdown of both (spec.md §5, §9).
func (s *Server) Run(ctx context.Context, httpAddr, httpsAddr string, tlsConfig *tls.Config) error {
	redirect := &http.Server{
		Addr: httpAddr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := "https://" + stripPort(r.Host) + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		}),
	}
	secure := &http.Server{
		Addr:      httpsAddr,
		Handler:   s.routes(),
		TLSConfig: tlsConfig,
	}

	errs := make(chan error, 2)
	go func() { errs <- redirect.ListenAndServe() }()
	go func() { errs <- secure.ListenAndServeTLS("", "") }()

	select {
	case <-ctx.Done():
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = redirect.Shutdown(shutdownCtx)
	_ = secure.Shutdown(shutdownCtx)
	return nil
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i != -1 {
		return host[:i]
	}
	return host
}
