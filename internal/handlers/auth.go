package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// AuthHandler provides registration, JWT and profile endpoints.
type AuthHandler struct {
	userService *services.UserService
	tokens      *services.TokenIssuer
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, tokens *services.TokenIssuer) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
	}
}

// AuthRouter registers auth and profile routes on the given router.
// loginLimiter may be nil to disable throttling.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	tokens *services.TokenIssuer,
	loginLimiter *IPRateLimiter,
) {
	handler := NewAuthHandler(userService, tokens)
	requireSession := RequireSession(userService, tokens)

	r.Post("/user/register", handler.Register)
	if loginLimiter != nil {
		r.With(loginLimiter.Middleware).Post("/token", handler.Login)
	} else {
		r.Post("/token", handler.Login)
	}
	r.Post("/token/refresh", handler.Refresh)
	r.With(requireSession).Get("/profile", handler.Profile)
	r.With(requireSession).Put("/profile/update", handler.UpdateProfile)
}

// RequireSession authenticates the bearer access token, loads the user and
// stores the resulting services.Session in the request context.
func RequireSession(userService *services.UserService, tokens *services.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, err := tokens.ParseAccess(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				writeServiceError(w, r, err)
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("user_id", user.ID)
			})
			ctx := services.WithSession(r.Context(), services.SessionFor(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects non-staff sessions. It must run after RequireSession.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := services.SessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !session.IsStaff {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates a new user account and returns it with a token pair.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		writeServiceError(w, r, services.NewValidationError("password_confirm", "passwords do not match"))
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
		JobTitle:     req.JobTitle,
		PhoneNumber:  req.PhoneNumber,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, RegisterResponse{
		User:    user,
		Access:  pair.Access,
		Refresh: pair.Refresh,
		Message: "User registered successfully",
	})
}

// Login verifies credentials and returns an access/refresh pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	pair, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Refresh) == "" {
		writeServiceError(w, r, services.NewValidationError("refresh", "required"))
		return
	}

	access, err := h.tokens.Refresh(req.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Access: access})
}

// Profile returns the current user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, _ := services.SessionFromContext(r.Context())
	user, err := h.userService.GetByID(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial profile update to the current user.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	user, err := h.userService.UpdateProfile(r.Context(), session.UserID, services.ProfileUpdate{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
		JobTitle:     req.JobTitle,
		PhoneNumber:  req.PhoneNumber,
		Password:     req.Password,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Organization    string `json:"organization"`
	JobTitle        string `json:"job_title"`
	PhoneNumber     string `json:"phone_number"`
}

type RegisterResponse struct {
	User    types.User `json:"user"`
	Access  string     `json:"access"`
	Refresh string     `json:"refresh"`
	Message string     `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}

type ProfileUpdateRequest struct {
	Email        *string `json:"email"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Organization *string `json:"organization"`
	JobTitle     *string `json:"job_title"`
	PhoneNumber  *string `json:"phone_number"`
	Password     *string `json:"password"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
