package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PrincipalHeader carries the authenticated caller, set by the gateway.
const PrincipalHeader = "X-Principal"

var (
	ErrMissingCaller = errors.New("missing caller principal")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrInvalidToken  = errors.New("invalid token id")
)

type Marketplace interface {
	ListToken(ctx context.Context, collection entity.Collection, tokenId uint64, price uint64, caller entity.Principal) error
	BuyToken(ctx context.Context, collection entity.Collection, tokenId uint64, paid uint64, caller entity.Principal) error
	CancelTokenSale(ctx context.Context, collection entity.Collection, tokenId uint64, caller entity.Principal) error
	WithdrawProceeds(ctx context.Context, caller entity.Principal) (uint64, error)
	WithdrawOwnerBalance(ctx context.Context, caller entity.Principal) (uint64, error)
	TransferOperator(ctx context.Context, caller entity.Principal, next entity.Principal) error

	TokenListing(collection entity.Collection, tokenId uint64) entity.Listing
	Proceeds(principal entity.Principal) uint64
	OwnerBalance() uint64
	Operator() entity.Principal
	Marketplace() entity.Principal
}

type Server struct {
	marketplace Marketplace
	timeout     time.Duration
	local       LocalRegistry
}

func NewServer(marketplace Marketplace, timeout time.Duration) *Server {
	return &Server{marketplace: marketplace, timeout: timeout}
}

// Amount is a token amount. It is written as a decimal string and read from
// either a string or a JSON number.
type Amount uint64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(a), 10))), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	value, err := strconv.ParseUint(strings.Trim(string(data), `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %s", ErrInvalidBody, data)
	}
	*a = Amount(value)
	return nil
}

type listingResponse struct {
	Collection entity.Collection `json:"nftAddress"`
	TokenId    uint64            `json:"tokenId"`
	Seller     entity.Principal  `json:"seller"`
	Price      Amount            `json:"price"`
	Active     bool              `json:"active"`
}

type listRequest struct {
	Price Amount `json:"price"`
}

type purchaseRequest struct {
	Paid Amount `json:"paid"`
}

type purchaseResponse struct {
	Collection entity.Collection `json:"nftAddress"`
	TokenId    uint64            `json:"tokenId"`
	Buyer      entity.Principal  `json:"buyer"`
	Price      Amount            `json:"price"`
}

type balanceResponse struct {
	Principal entity.Principal `json:"principal"`
	Amount    Amount           `json:"amount"`
}

type operatorRequest struct {
	Operator string `json:"operator"`
}

type operatorResponse struct {
	Operator entity.Principal `json:"operator"`
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/listings/{collection}/{tokenId}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{collection}/{tokenId}", s.handleListToken).Methods("PUT")
	r.HandleFunc("/listings/{collection}/{tokenId}", s.handleCancelTokenSale).Methods("DELETE")
	r.HandleFunc("/listings/{collection}/{tokenId}/purchase", s.handleBuyToken).Methods("POST")

	r.HandleFunc("/proceeds/withdraw", s.handleWithdrawProceeds).Methods("POST")
	r.HandleFunc("/proceeds/{principal}", s.handleGetProceeds).Methods("GET")

	r.HandleFunc("/operator", s.handleGetOperator).Methods("GET")
	r.HandleFunc("/operator", s.handleTransferOperator).Methods("PUT")
	r.HandleFunc("/operator/balance", s.handleGetOwnerBalance).Methods("GET")
	r.HandleFunc("/operator/withdraw", s.handleWithdrawOwnerBalance).Methods("POST")

	if s.local != nil {
		s.localRoutes(r)
	}

	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	collection, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listing := s.marketplace.TokenListing(collection, tokenId)
	writeJson(w, http.StatusOK, listingResponse{
		Collection: collection,
		TokenId:    tokenId,
		Seller:     listing.Seller,
		Price:      Amount(listing.Price),
		Active:     listing.Active(),
	})
}

func (s *Server) handleListToken(w http.ResponseWriter, r *http.Request) {
	caller, collection, tokenId, err := getCallerAndToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req listRequest
	if err := readJson(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.marketplace.ListToken(ctx, collection, tokenId, uint64(req.Price), caller); err != nil {
		writeError(w, err)
		return
	}

	listing := s.marketplace.TokenListing(collection, tokenId)
	writeJson(w, http.StatusOK, listingResponse{
		Collection: collection,
		TokenId:    tokenId,
		Seller:     listing.Seller,
		Price:      Amount(listing.Price),
		Active:     listing.Active(),
	})
}

func (s *Server) handleCancelTokenSale(w http.ResponseWriter, r *http.Request) {
	caller, collection, tokenId, err := getCallerAndToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.marketplace.CancelTokenSale(ctx, collection, tokenId, caller); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuyToken(w http.ResponseWriter, r *http.Request) {
	caller, collection, tokenId, err := getCallerAndToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req purchaseRequest
	if err := readJson(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.marketplace.BuyToken(ctx, collection, tokenId, uint64(req.Paid), caller); err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, purchaseResponse{
		Collection: collection,
		TokenId:    tokenId,
		Buyer:      caller,
		Price:      req.Paid,
	})
}

func (s *Server) handleGetProceeds(w http.ResponseWriter, r *http.Request) {
	principal, err := entity.NewPrincipal(mux.Vars(r)["principal"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, balanceResponse{Principal: principal, Amount: Amount(s.marketplace.Proceeds(principal))})
}

func (s *Server) handleWithdrawProceeds(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	amount, err := s.marketplace.WithdrawProceeds(ctx, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, balanceResponse{Principal: caller, Amount: Amount(amount)})
}

func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, operatorResponse{Operator: s.marketplace.Operator()})
}

func (s *Server) handleTransferOperator(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req operatorRequest
	if err := readJson(r, &req); err != nil {
		writeError(w, err)
		return
	}
	next, err := entity.NewPrincipal(req.Operator)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	if err := s.marketplace.TransferOperator(ctx, caller, next); err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, operatorResponse{Operator: s.marketplace.Operator()})
}

func (s *Server) handleGetOwnerBalance(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, balanceResponse{Principal: s.marketplace.Operator(), Amount: Amount(s.marketplace.OwnerBalance())})
}

func (s *Server) handleWithdrawOwnerBalance(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()

	amount, err := s.marketplace.WithdrawOwnerBalance(ctx, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, balanceResponse{Principal: caller, Amount: Amount(amount)})
}

func (s *Server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func getCaller(r *http.Request) (entity.Principal, error) {
	header := r.Header.Get(PrincipalHeader)
	if header == "" {
		return entity.NoPrincipal, ErrMissingCaller
	}

	return entity.NewPrincipal(header)
}

func getToken(r *http.Request) (entity.Collection, uint64, error) {
	collection, err := entity.NewCollection(mux.Vars(r)["collection"])
	if err != nil {
		return "", 0, err
	}

	tokenId, err := strconv.ParseUint(mux.Vars(r)["tokenId"], 10, 64)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	return collection, tokenId, nil
}

func getCallerAndToken(r *http.Request) (entity.Principal, entity.Collection, uint64, error) {
	caller, err := getCaller(r)
	if err != nil {
		return entity.NoPrincipal, "", 0, err
	}

	collection, tokenId, err := getToken(r)
	return caller, collection, tokenId, err
}

func readJson(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, ErrInvalidBody) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().With(zap.Error(err)).Warn("API: Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	switch {
	case errors.Is(err, ErrMissingCaller):
		status, code = http.StatusUnauthorized, "MissingCaller"
	case errors.Is(err, ErrInvalidBody):
		status, code = http.StatusBadRequest, "InvalidBody"
	case errors.Is(err, ErrInvalidToken):
		status, code = http.StatusBadRequest, "InvalidToken"
	}

	if status >= http.StatusInternalServerError {
		zap.L().With(zap.Error(err), zap.Int("status", status)).Error("API: Request failed")
	}

	writeJson(w, status, errorResponse{Error: code, Message: err.Error()})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		).Debug("API: Request")
	})
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, "Page not found")
	})
}
