package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"market-chat/auth"
	"market-chat/domain"
	"market-chat/errors"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type registerBody struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	token, err := a.authn.Register(body.Email, body.Password, body.FullName, body.Roles)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, errors.ErrInvalidCredentials)
		return
	}
	token, err := a.authn.Login(body.Email, body.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

type conversationSummaryDTO struct {
	ConversationID string     `json:"conversationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	OtherUserID    string     `json:"otherUserId"`
	OtherFullName  string     `json:"otherFullName,omitempty"`
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	summaries, err := a.conversation.Summaries(identity.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	dtos := lo.Map(summaries, func(s domain.ConversationSummary, _ int) conversationSummaryDTO {
		return conversationSummaryDTO{
			ConversationID: s.ConversationID.String(),
			CreatedAt:      s.CreatedAt,
			LastMessageAt:  s.LastMessageAt,
			OtherUserID:    s.OtherUserID,
			OtherFullName:  s.OtherFullName,
		}
	})
	a.writeJSON(w, http.StatusOK, dtos)
}

type conversationStateDTO struct {
	ConversationID string     `json:"conversationId"`
	IsClosed       bool       `json:"isClosed"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		a.writeError(w, errors.ErrNotFound)
		return
	}
	isClosed, closedAt, err := a.conversation.IsClosed(conversationID, identity.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, conversationStateDTO{
		ConversationID: conversationID.String(),
		IsClosed:       isClosed,
		ClosedAt:       closedAt,
	})
}

type messageDTO struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Lang           string    `json:"lang,omitempty"`
	SentAt         time.Time `json:"sentAt"`
}

type messagePageDTO struct {
	Messages []messageDTO `json:"messages"`
	Cursor   *string      `json:"cursor,omitempty"`
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		a.writeError(w, errors.ErrNotFound)
		return
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	messages, next, err := a.conversation.History(conversationID, identity.ID, cursor)
	if err != nil {
		a.writeError(w, err)
		return
	}
	page := messagePageDTO{
		Messages: lo.Map(messages, func(m domain.Message, _ int) messageDTO {
			return messageDTO{
				MessageID:      m.ID.String(),
				ConversationID: m.ConversationID.String(),
				SenderID:       m.SenderID,
				Content:        m.Content,
				Lang:           m.Lang,
				SentAt:         m.SentAt,
			}
		}),
		Cursor: next,
	}
	a.writeJSON(w, http.StatusOK, page)
}

type searchHitDTO struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

func (a *API) searchMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	conversationID, err := pathID(r)
	if err != nil {
		a.writeError(w, errors.ErrNotFound)
		return
	}
	terms := r.URL.Query().Get("q")
	if terms == "" {
		a.writeError(w, errors.ErrEmptyContent)
		return
	}
	hits, err := a.conversation.Search(r.Context(), conversationID, identity.ID, terms)
	if err != nil {
		a.writeError(w, err)
		return
	}
	dtos := make([]searchHitDTO, 0, len(hits))
	for _, hit := range hits {
		dtos = append(dtos, searchHitDTO{MessageID: hit.MessageID, Content: hit.Content})
	}
	a.writeJSON(w, http.StatusOK, dtos)
}

func (a *API) availableResponders(w http.ResponseWriter, r *http.Request) {
	responders, err := a.directory.AvailableResponders()
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, responders)
}

func (a *API) myProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	profile, err := a.directory.Profile(identity.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, profile)
}

type updateProfileBody struct {
	FullName    string `json:"fullName"`
	Description string `json:"description"`
	IsAvailable bool   `json:"isAvailable"`
}

func (a *API) updateMyProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	var body updateProfileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	profile, err := a.directory.UpdateProfile(r.Context(), identity.ID,
		body.FullName, body.Description, body.IsAvailable)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, profile)
}

type pendingRequestDTO struct {
	RequestID string    `json:"requestId"`
	FromID    string    `json:"fromId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *API) pendingRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.writeError(w, errors.ErrForbidden)
		return
	}
	pending, err := a.requests.Pending(identity.ID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	dtos := lo.Map(pending, func(req domain.ChatRequest, _ int) pendingRequestDTO {
		return pendingRequestDTO{
			RequestID: req.ID.String(),
			FromID:    req.FromID,
			CreatedAt: req.CreatedAt,
		}
	})
	a.writeJSON(w, http.StatusOK, dtos)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}
