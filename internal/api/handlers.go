package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/xtrntr/auctionhouse/internal/auction"
	"github.com/xtrntr/auctionhouse/internal/auth"
	"github.com/xtrntr/auctionhouse/internal/db"
)

type ctxKey int

const identityKey ctxKey = iota

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Program     *auction.Program
	AuthService *auth.AuthService
	Hub         *Hub
	log         *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(program *auction.Program, authService *auth.AuthService, hub *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Program: program, AuthService: authService, Hub: hub, log: log.With("pkg", "api")}
}

// Routes mounts every endpoint on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/livez", h.Livez)
	r.Get("/ws", h.Hub.ServeWS)

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Get("/auctions/{address}", h.GetAuction)
	r.Get("/auctions/{address}/bids/{bidder}", h.GetBid)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Post("/auctions", h.MakeAuction)
		r.Post("/auctions/{address}/bids", h.PlaceBid)
		r.Post("/auctions/{address}/resolve", h.Resolve)
		r.Post("/auctions/{address}/refund", h.ClaimRefund)
		r.Post("/auctions/{address}/cancel", h.Cancel)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeProtocolError reports a failed auction operation
func (h *Handler) writeProtocolError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("operation failed", "err", err)
		writeJSON(w, status, map[string]string{"error": "Internal error", "code": auction.Code(err)})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": auction.Code(err)})
}

// Livez reports that the process is serving
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register handles wallet-bound user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		PublicKey string `json:"public_key"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}
	identity, err := solana.PublicKeyFromBase58(req.PublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid public key")
		return
	}
	signature, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid signature encoding")
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password, identity, signature)
	switch {
	case errors.Is(err, auth.ErrInvalidSignature):
		writeError(w, http.StatusForbidden, "Signature does not match public key")
		return
	case errors.Is(err, db.ErrUserExists):
		writeError(w, http.StatusConflict, "Username or wallet already registered")
		return
	case err != nil:
		h.log.Warn("registration failed", "username", req.Username, "err", err)
		writeError(w, http.StatusBadRequest, "Failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"identity": user.Identity.String(),
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens and puts the caller's wallet in the
// request context
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		identity, err := h.AuthService.GetIdentityFromToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) (solana.PublicKey, bool) {
	pk, ok := ctx.Value(identityKey).(solana.PublicKey)
	return pk, ok
}

func addressParam(r *http.Request, name string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(chi.URLParam(r, name))
}

// MakeAuction creates an auction owned by the caller
func (h *Handler) MakeAuction(w http.ResponseWriter, r *http.Request) {
	maker, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Seed          uint64  `json:"seed"`
		EndTime       int64   `json:"end_time"`
		PrizeMint     string  `json:"prize_mint"`
		BidMint       string  `json:"bid_mint"`
		DepositAmount *uint64 `json:"deposit_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	prizeMint, err := solana.PublicKeyFromBase58(req.PrizeMint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid prize_mint")
		return
	}
	bidMint, err := solana.PublicKeyFromBase58(req.BidMint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bid_mint")
		return
	}
	deposit := uint64(auction.PrizeUnit)
	if req.DepositAmount != nil {
		deposit = *req.DepositAmount
	}

	addr, err := h.Program.MakeAuction(r.Context(), maker, auction.MakeParams{
		Seed:          req.Seed,
		EndTime:       req.EndTime,
		PrizeMint:     prizeMint,
		BidMint:       bidMint,
		DepositAmount: deposit,
	})
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	h.respondWithAuction(w, r, http.StatusCreated, addr)
}

// PlaceBid adds to the caller's bid. The amount is a decimal string in units
// of the bid asset, e.g. "1.25".
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction address")
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.Program.Auction(r.Context(), addr)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	amount, err := ParseAmount(req.Amount, snap.BidDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Program.Bid(r.Context(), bidder, addr, amount); err != nil {
		h.writeProtocolError(w, err)
		return
	}
	h.respondWithAuction(w, r, http.StatusOK, addr)
}

// Resolve settles an ended auction. Any authenticated caller may crank it.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Program.Resolve, "Auction resolved")
}

// ClaimRefund returns the caller's losing deposit
func (h *Handler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Program.ClaimRefund, "Refund claimed")
}

// Cancel unwinds the caller's auction that received no bids
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Program.Cancel, "Auction canceled")
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, op func(context.Context, solana.PublicKey, solana.PublicKey) error, message string) {
	caller, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction address")
		return
	}

	if err := op(r.Context(), caller, addr); err != nil {
		h.writeProtocolError(w, err)
		return
	}
	h.Hub.Publish(r.Context(), addr)
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondWithAuction writes the current auction view and pushes it to subscribers
func (h *Handler) respondWithAuction(w http.ResponseWriter, r *http.Request, status int, addr solana.PublicKey) {
	snap, err := h.Program.Auction(r.Context(), addr)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	h.Hub.Publish(r.Context(), addr)
	writeJSON(w, status, NewAuctionView(snap))
}

// GetAuction returns the auction at the address
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction address")
		return
	}
	snap, err := h.Program.Auction(r.Context(), addr)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAuctionView(snap))
}

// GetBid returns one bidder's deposit on an auction
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid auction address")
		return
	}
	bidder, err := addressParam(r, "bidder")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bidder")
		return
	}

	snap, err := h.Program.Auction(r.Context(), addr)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	bid, err := h.Program.BidOf(r.Context(), addr, bidder)
	if err != nil {
		h.writeProtocolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBidView(addr, bid, snap.BidDecimals))
}
