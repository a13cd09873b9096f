// Package web exposes the exchange over HTTP: quote and trade endpoints plus
// an SSE balance stream.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/events"
)

type exchange interface {
	Quote(ctx context.Context, mode domain.Mode, curveID string, pair domain.Pair, amount *big.Int) (domain.Quote, error)
	NewIntent(ctx context.Context, participant string, mode domain.Mode, curveID string, pair domain.Pair,
		amount *big.Int, slippageBps int64, deadline time.Time) (*domain.TradeIntent, error)
	Execute(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeResult, error)
	GetBalances(ctx context.Context, participant string, pair domain.Pair) *domain.BalanceSnapshot
	GetCurveState(curveID string) (*domain.CurveState, error)
}

// Server exposes the trade API and an SSE stream of balance events.
type Server struct {
	Addr string

	exchange    exchange
	broadcaster *events.BalanceBroadcaster
	l           *zap.Logger

	// request defaults
	participant string
	pair        domain.Pair
	curveID     string
	slippageBps int64
	deadline    time.Duration
}

// NewServer creates a new API server instance.
func NewServer(l *zap.Logger, addr string, ex exchange, broadcaster *events.BalanceBroadcaster,
	participant string, pair domain.Pair, curveID string, slippageBps int64, deadline time.Duration) *Server {
	return &Server{
		Addr:        addr,
		exchange:    ex,
		broadcaster: broadcaster,
		l:           l,
		participant: participant,
		pair:        pair,
		curveID:     curveID,
		slippageBps: slippageBps,
		deadline:    deadline,
	}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /quote", s.handleQuote)
	mux.HandleFunc("POST /trade", s.handleTrade)
	mux.HandleFunc("GET /balances", s.handleBalances)
	mux.HandleFunc("GET /curve", s.handleCurve)
	mux.HandleFunc("GET /balance/stream", s.handleBalanceStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	// HTTP server on port 80 for ACME challenges and HTTP->HTTPS redirects.
	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = httpsSrv.Shutdown(shutdownCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

type quoteRequest struct {
	Mode   string `json:"mode"`
	Amount string `json:"amount"`
	// Source "curve" (default) or "pool".
	Source string `json:"source,omitempty"`
}

type quoteResponse struct {
	Mode          string `json:"mode"`
	Source        string `json:"source"`
	AmountIn      string `json:"amount_in"`
	AmountOut     string `json:"amount_out"`
	PricePerUnit  string `json:"price_per_unit"`
	ValidAt       uint64 `json:"valid_at"`
	CounterAmount string `json:"counter_amount"`
}

type tradeRequest struct {
	Mode        string `json:"mode"`
	Amount      string `json:"amount"`
	Source      string `json:"source,omitempty"`
	SlippageBps int64  `json:"slippage_bps,omitempty"`
}

type tradeResponse struct {
	IntentID  string `json:"intent_id"`
	State     string `json:"state"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Ref       string `json:"ref,omitempty"`
}

type balancesResponse struct {
	Participant string    `json:"participant"`
	Pair        string    `json:"pair"`
	Base        string    `json:"base"`
	Quote       string    `json:"quote"`
	Stale       bool      `json:"stale"`
	Timestamp   time.Time `json:"ts"`
}

type curveResponse struct {
	CurveID      string `json:"curve_id"`
	CurrentPrice string `json:"current_price"`
	TokensSold   string `json:"tokens_sold"`
	ReserveQuote string `json:"reserve_quote"`
	Remaining    string `json:"remaining"`
	Version      uint64 `json:"version"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mode, amount, curveID, err := s.parseTradeParams(req.Mode, req.Amount, req.Source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := s.exchange.Quote(r.Context(), mode, curveID, s.pair, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	amountIn, amountOut := q.AmountSpecified, q.CounterAmount
	if mode == domain.ModeBuy {
		amountIn, amountOut = q.CounterAmount, q.AmountSpecified
	}
	s.writeJSON(w, quoteResponse{
		Mode:          q.Mode.String(),
		Source:        q.Source.String(),
		AmountIn:      amountIn.String(),
		AmountOut:     amountOut.String(),
		PricePerUnit:  q.PricePerUnit.String(),
		ValidAt:       q.ValidAt,
		CounterAmount: q.CounterAmount.String(),
	})
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mode, amount, curveID, err := s.parseTradeParams(req.Mode, req.Amount, req.Source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = s.slippageBps
	}

	intent, err := s.exchange.NewIntent(r.Context(), s.participant, mode, curveID, s.pair,
		amount, slippage, time.Now().Add(s.deadline))
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.exchange.Execute(r.Context(), intent)
	if err != nil && result == nil {
		s.writeError(w, err)
		return
	}

	resp := tradeResponse{
		IntentID: intent.ID,
		State:    result.State.String(),
		Ref:      result.Ref,
	}
	if result.AmountIn != nil {
		resp.AmountIn = result.AmountIn.String()
	}
	if result.AmountOut != nil {
		resp.AmountOut = result.AmountOut.String()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	snap := s.exchange.GetBalances(r.Context(), s.participant, s.pair)
	s.writeJSON(w, balancesResponse{
		Participant: snap.Participant,
		Pair:        snap.Pair.String(),
		Base:        snap.Base.String(),
		Quote:       snap.Quote.String(),
		Stale:       snap.Stale,
		Timestamp:   snap.Timestamp,
	})
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	state, err := s.exchange.GetCurveState(s.curveID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, curveResponse{
		CurveID:      s.curveID,
		CurrentPrice: state.CurrentPrice().String(),
		TokensSold:   state.TokensSold.String(),
		ReserveQuote: state.ReserveQuote.String(),
		Remaining:    state.Remaining().String(),
		Version:      state.Version,
	})
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	// comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-sub:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.l.Warn("failed to marshal balance event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) parseTradeParams(modeStr, amountStr, source string) (domain.Mode, *big.Int, string, error) {
	mode, err := domain.ParseMode(modeStr)
	if err != nil {
		return 0, nil, "", err
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return 0, nil, "", fmt.Errorf("invalid 'amount' param: %q", amountStr)
	}

	curveID := s.curveID
	if source == "pool" {
		curveID = ""
	}
	return mode, amount, curveID, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrSupplyExceeded),
		errors.Is(err, domain.ErrInsufficientReserve):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPoolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrSlippageExceeded):
		status = http.StatusConflict
	}

	s.l.Warn("request failed", zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}
