package api

import (
	"net/http"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/gorilla/mux"
)

// LocalRegistry is the in-process asset registry of a local network.
type LocalRegistry interface {
	Mint(collection entity.Collection, owner entity.Principal) (uint64, error)
	Approve(collection entity.Collection, tokenId uint64, owner, spender entity.Principal) error
}

type tokenResponse struct {
	Collection entity.Collection `json:"nftAddress"`
	TokenId    uint64            `json:"tokenId"`
	Owner      entity.Principal  `json:"owner"`
}

type approvalResponse struct {
	Collection entity.Collection `json:"nftAddress"`
	TokenId    uint64            `json:"tokenId"`
	Spender    entity.Principal  `json:"spender"`
}

// WithLocalRegistry serves the /local routes, which mint tokens and approve
// them for the marketplace. Only local networks set it.
func (s *Server) WithLocalRegistry(registry LocalRegistry) *Server {
	s.local = registry
	return s
}

func (s *Server) localRoutes(r *mux.Router) {
	local := r.PathPrefix("/local").Subrouter()
	local.HandleFunc("/collections/{collection}/tokens", s.handleMint).Methods("POST")
	local.HandleFunc("/collections/{collection}/tokens/{tokenId}/approve", s.handleApprove).Methods("POST")
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	collection, err := entity.NewCollection(mux.Vars(r)["collection"])
	if err != nil {
		writeError(w, err)
		return
	}

	tokenId, err := s.local.Mint(collection, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusCreated, tokenResponse{Collection: collection, TokenId: tokenId, Owner: caller})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, collection, tokenId, err := getCallerAndToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	spender := s.marketplace.Marketplace()
	if err := s.local.Approve(collection, tokenId, caller, spender); err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, approvalResponse{Collection: collection, TokenId: tokenId, Spender: spender})
}
