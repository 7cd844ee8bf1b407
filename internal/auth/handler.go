package auth

import (
	"encoding/json"
	"net/http"

	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/logger"
)

// SignInAnonymously hands out a fresh author identity.
func SignInAnonymously(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, authorID, err := issuer.IssueAnonymous()
		if err != nil {
			logger.Sugar.Errorf("Anonymous sign-in failed: %v", err)
			http.Error(w, "Anonymous sign-in failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.AnonymousSignInResponse{Token: token, AuthorID: authorID})
	}
}

// RefreshIdentity renews a token for the author it already names.
func RefreshIdentity(issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		token, authorID, err := issuer.Refresh(req.Token)
		if err != nil {
			logger.Sugar.Warnf("Token refresh refused: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.AnonymousSignInResponse{Token: token, AuthorID: authorID})
	}
}
