package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/contract"
	"github.com/Calcifer1001/heist/internal/ledger"
	"github.com/Calcifer1001/heist/internal/observability"
)

// callerHeader carries the account identity of the requester. Operations
// that mutate state refuse requests without it.
const callerHeader = "X-Caller-Id"

// Server exposes the ledger over HTTP/JSON.
type Server struct {
	ledger        *contract.Ledger
	router        *mux.Router
	httpServer    *http.Server
	healthChecker *observability.HealthChecker
	metrics       *observability.Metrics
	log           zerolog.Logger
}

func NewServer(l *contract.Ledger, healthChecker *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		ledger:        l,
		router:        mux.NewRouter(),
		healthChecker: healthChecker,
		metrics:       metrics,
		log:           log.With().Str("component", "http").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.instrument)

	// Accounts
	api.HandleFunc("/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/registrations/count", s.handleRegistrationCount).Methods("GET")
	api.HandleFunc("/balances/{account}", s.handleGetBalance).Methods("GET")

	// Prices
	api.HandleFunc("/prices", s.handleListPrices).Methods("GET")
	api.HandleFunc("/prices/{asset}", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/prices/{asset}", s.handleSetPrice).Methods("PUT")
	api.HandleFunc("/synthetic/price", s.handleGetSyntheticPrice).Methods("GET")
	api.HandleFunc("/synthetic/advance", s.handleAdvanceEpoch).Methods("POST")

	// Bets
	api.HandleFunc("/bets", s.handlePlaceBet).Methods("POST")
	api.HandleFunc("/bets/close", s.handleCloseBet).Methods("POST")
	api.HandleFunc("/bets/{account}", s.handleGetBet).Methods("GET")

	// Word unlocks
	api.HandleFunc("/words/buy", s.handleBuyWord).Methods("POST")
	api.HandleFunc("/words/{account}", s.handleGetWords).Methods("GET")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Operational endpoints outside the API prefix
	if s.healthChecker != nil {
		s.router.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		s.router.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the full middleware-wrapped handler. Split out from
// Start so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", callerHeader},
	})
	return c.Handler(s.router)
}

// Start runs the HTTP server until the context is cancelled (blocking).
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// instrument records per-route request counts and latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ============================================================================
// Account handlers
// ============================================================================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	token, err := ledger.ParseTokenKind(req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", err.Error())
		return
	}

	balance, err := s.ledger.Register(caller, token)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RegisterResponse{
		Account: caller,
		Token:   token.String(),
		Balance: balance.String(),
	})
}

func (s *Server) handleRegistrationCount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RegistrationCountResponse{Count: s.ledger.RegisteredCount()})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	tokenID, err := strconv.Atoi(r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", "token query parameter must be an integer")
		return
	}
	token, err := ledger.ParseTokenKind(tokenID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", err.Error())
		return
	}

	balance, err := s.ledger.Balance(account, token)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, BalanceResponse{
		Account: account,
		Token:   token.String(),
		Balance: balance.String(),
	})
}

// ============================================================================
// Price handlers
// ============================================================================

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	prices := s.ledger.CurrentPrices()
	response := make([]PriceResponse, len(prices))
	for i, p := range prices {
		response[i] = PriceResponse{Asset: p.Asset, Price: p.Price.String()}
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	price, err := s.ledger.Price(asset)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, PriceResponse{Asset: asset, Price: price.String()})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	asset := mux.Vars(r)["asset"]

	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	price, okPrice := new(big.Int).SetString(req.Price, 10)
	if !okPrice {
		respondError(w, http.StatusBadRequest, "invalid price", "price must be a decimal string")
		return
	}

	if err := s.ledger.SetPrice(caller, asset, price); err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, PriceResponse{Asset: asset, Price: price.String()})
}

func (s *Server) handleGetSyntheticPrice(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SyntheticPriceResponse{Price: s.ledger.SyntheticPrice().String()})
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	price, err := s.ledger.AdvanceSyntheticPrice(caller)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SyntheticPriceResponse{Price: price.String()})
}

// ============================================================================
// Bet handlers
// ============================================================================

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	token, err := ledger.ParseTokenKind(req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", err.Error())
		return
	}

	direction, err := contract.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err.Error())
		return
	}

	amount, okAmount := new(big.Int).SetString(req.Amount, 10)
	if !okAmount {
		respondError(w, http.StatusBadRequest, "invalid amount", "amount must be a decimal string")
		return
	}

	if err := s.ledger.PlaceBet(caller, req.Asset, token, amount, direction); err != nil {
		s.respondLedgerError(w, err)
		return
	}

	bet, err := s.ledger.Bet(caller)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, betResponse(caller, bet))
}

func (s *Server) handleGetBet(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	bet, err := s.ledger.Bet(account)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, betResponse(account, bet))
}

func (s *Server) handleCloseBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	payout, err := s.ledger.CloseBet(caller)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CloseBetResponse{Account: caller, Payout: payout.String()})
}

func betResponse(account string, bet contract.Bet) BetResponse {
	return BetResponse{
		Account:     account,
		Asset:       bet.Asset,
		EntryPrice:  bet.EntryPrice.String(),
		StakeToken:  bet.StakeToken.String(),
		StakeAmount: bet.StakeAmount.String(),
		Direction:   bet.Direction.String(),
	}
}

// ============================================================================
// Word handlers
// ============================================================================

func (s *Server) handleBuyWord(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req BuyWordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	token, err := ledger.ParseTokenKind(req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token", err.Error())
		return
	}

	word, err := s.ledger.BuyWord(caller, token)
	if err != nil {
		s.respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, BuyWordResponse{Account: caller, Word: word})
}

func (s *Server) handleGetWords(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	words := s.ledger.Words(account)
	respondJSON(w, http.StatusOK, WordsResponse{Account: account, Words: words, Count: len(words)})
}

// ============================================================================
// Status
// ============================================================================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{
		Sequence:       s.ledger.Sequence(),
		SyntheticPrice: s.ledger.SyntheticPrice().String(),
		Registrations:  s.ledger.RegisteredCount(),
		TrackedAssets:  len(s.ledger.CurrentPrices()),
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := r.Header.Get(callerHeader)
	if caller == "" {
		respondError(w, http.StatusBadRequest, "missing caller", callerHeader+" header is required")
		return "", false
	}
	return caller, true
}

// respondLedgerError maps ledger sentinel errors to HTTP statuses.
func (s *Server) respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respondError(w, http.StatusUnprocessableEntity, "insufficient balance", err.Error())
	case errors.Is(err, ledger.ErrNoOpenBet):
		respondError(w, http.StatusNotFound, "no open bet", err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ledger.ErrInvalidToken), errors.Is(err, ledger.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input", err.Error())
	default:
		s.log.Error().Err(err).Msg("unexpected ledger error")
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	respondJSON(w, status, ErrorResponse{Error: errMsg, Message: detail})
}
