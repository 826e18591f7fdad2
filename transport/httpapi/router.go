// Package httpapi exposes the REST surface: accounts, listings and
// history reads. Real-time traffic never goes through here; that is
// the ws package's job.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"market-chat/auth"
	"market-chat/errors"
	"market-chat/services"

	"github.com/gorilla/mux"
)

type API struct {
	authn        services.IAuthService
	requests     services.IRequestService
	conversation services.IConversationService
	directory    services.IDirectoryService
	log          *slog.Logger
}

func NewAPI(authn services.IAuthService, requests services.IRequestService,
	conversation services.IConversationService, directory services.IDirectoryService,
	log *slog.Logger) *API {
	return &API{
		authn:        authn,
		requests:     requests,
		conversation: conversation,
		directory:    directory,
		log:          log,
	}
}

// Register mounts every route. /api/auth is public; everything else
// sits behind the Bearer middleware.
func (a *API) Register(r *mux.Router, tokens auth.Tokens) {
	r.HandleFunc("/api/auth/register", a.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", a.login).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(auth.Middleware(tokens))

	protected.HandleFunc("/conversations", a.listConversations).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id}", a.getConversation).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id}/messages", a.listMessages).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id}/search", a.searchMessages).Methods(http.MethodGet)

	protected.HandleFunc("/responders/available", a.availableResponders).Methods(http.MethodGet)
	protected.HandleFunc("/responders/me", a.myProfile).Methods(http.MethodGet)
	protected.HandleFunc("/responders/me", a.updateMyProfile).Methods(http.MethodPost)
	protected.HandleFunc("/responders/requests/pending", a.pendingRequests).Methods(http.MethodGet)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Warn("failed to encode response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	a.writeJSON(w, errors.MapToHTTPStatus(err), map[string]string{
		"error":   errors.Code(err),
		"message": err.Error(),
	})
}
