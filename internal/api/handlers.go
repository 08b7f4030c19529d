package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teamchat-dev/teamchat/internal/auth"
	"github.com/teamchat-dev/teamchat/internal/database"
	"github.com/teamchat-dev/teamchat/internal/server"
	"github.com/teamchat-dev/teamchat/internal/types"
)

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateChannelRequest struct {
	Name      string `json:"name" validate:"required"`
	IsPrivate bool   `json:"isPrivate"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MeResponse struct {
	User types.User `json:"user"`
}

type OkResponse struct {
	Ok bool `json:"ok"`
}

type JoinChannelResponse struct {
	Ok         bool             `json:"ok"`
	Membership types.Membership `json:"membership"`
}

func (s *TeamChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *TeamChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *TeamChatApp) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewValidationError("email and password required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateUser(database.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrDuplicateEmail) {
			errResp = NewValidationError("user already exists")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := types.User{
		Id:    newUser.Id,
		Name:  newUser.Name,
		Email: newUser.Email,
	}

	token, err := s.tokens.IssueToken(auth.Identity{Id: user.Id, Email: user.Email, Name: user.Name})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (s *TeamChatApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewValidationError("email and password required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetUserByEmail(req.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewValidationError("invalid credentials")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !auth.VerifyPassword(dbUser.PasswordHash, req.Password) {
		errResp := NewValidationError("invalid credentials")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := types.User{
		Id:    dbUser.Id,
		Name:  dbUser.Name,
		Email: dbUser.Email,
	}

	token, err := s.tokens.IssueToken(auth.Identity{Id: user.Id, Email: user.Email, Name: user.Name})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// me returns the identity embedded in the presented token; no store read is
// needed since tokens are self-contained.
func (s *TeamChatApp) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, MeResponse{User: types.User{
		Id:    identity.Id,
		Name:  identity.Name,
		Email: identity.Email,
	}})
}

func (s *TeamChatApp) listChannels(w http.ResponseWriter, _ *http.Request) {
	dbChannels, err := s.db.ListChannels()
	if err != nil {
		s.log.Println("list channels:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channels := make([]types.Channel, 0, len(dbChannels))
	for _, c := range dbChannels {
		channels = append(channels, types.Channel{
			Id:          c.Id,
			Name:        c.Name,
			IsPrivate:   c.IsPrivate,
			MemberCount: c.MemberCount,
			CreatedAt:   c.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, channels)
}

func (s *TeamChatApp) createChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewValidationError("name required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateChannelId()
	if err != nil {
		s.log.Print("generateChannelId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newChannel, err := s.db.CreateChannel(database.CreateChannelParams{
		Id:        sid,
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Channel{
		Id:        newChannel.Id,
		Name:      newChannel.Name,
		IsPrivate: newChannel.IsPrivate,
		CreatedAt: newChannel.CreatedAt,
	})
}

func (s *TeamChatApp) joinChannel(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channel, err := s.db.GetChannelById(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	membership, err := s.db.JoinChannel(identity.Id, channel.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrAlreadyMember) {
			errResp = NewValidationError("could not join channel")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, JoinChannelResponse{
		Ok: true,
		Membership: types.Membership{
			UserId:    membership.UserId,
			ChannelId: membership.ChannelId,
			CreatedAt: membership.CreatedAt,
		},
	})
}

func (s *TeamChatApp) leaveChannel(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.LeaveChannel(identity.Id, r.PathValue("id")); err != nil {
		s.log.Println("leave channel:", err)
		errResp := NewValidationError("could not leave channel")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, OkResponse{Ok: true})
}

func (s *TeamChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	channel, err := s.db.GetChannelById(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	cursor := r.URL.Query().Get("cursor")

	// Newest first from the store; reversed below so clients render oldest
	// to newest.
	dbMessages, err := s.db.GetMessages(channel.Id, limit, cursor)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for i := len(dbMessages) - 1; i >= 0; i-- {
		msg := dbMessages[i]
		messages = append(messages, types.Message{
			Id:        msg.Id,
			Text:      msg.Text,
			ChannelId: msg.ChannelId,
			CreatedAt: msg.CreatedAt,
			Sender: types.User{
				Id:    msg.SenderId,
				Name:  msg.SenderName,
				Email: msg.SenderEmail,
			},
		})
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *TeamChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessage(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the original sender may delete
	if msg.SenderId != identity.Id {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMessage(msg.Id); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// broadcast only after the delete committed
	s.cs.NotifyMessageDeleted(msg.Id, msg.ChannelId)

	s.writeJson(w, http.StatusOK, OkResponse{Ok: true})
}

func (s *TeamChatApp) getUsers(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id != "" {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		s.writeJson(w, http.StatusOK, []types.User{})
		return
	}

	dbUsers, err := s.db.GetUsersByIds(ids)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, types.User{
			Id:    u.Id,
			Name:  u.Name,
			Email: u.Email,
		})
	}

	s.writeJson(w, http.StatusOK, users)
}

// serveWs upgrades the connection for the realtime stream. A missing or
// invalid token is not an error: the connection is accepted as anonymous and
// can only receive broadcasts.
func (s *TeamChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	var identity *auth.Identity
	if tokenString := r.URL.Query().Get("token"); tokenString != "" {
		id, err := s.tokens.VerifyToken(tokenString)
		if err != nil {
			s.log.Println("socket auth failed:", err)
		} else {
			identity = &id
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(uuid.NewString(), identity, conn, s.cs, s.log, s.stats)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
