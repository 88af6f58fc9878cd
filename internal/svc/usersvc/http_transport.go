package usersvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-users/internal/domain"
	"github.com/mkrupp/homecase-users/internal/infra/logging"
	"github.com/mkrupp/homecase-users/internal/infra/metrics"
	http_ "github.com/mkrupp/homecase-users/internal/infra/transport/http"
)

// Response messages.
const (
	msgWelcome          = "Welcome to the User Management System API"
	msgInvalidJSON      = "Invalid JSON"
	msgMissingCreate    = "Missing name, email, or password"
	msgPasswordTooLong  = "Password is too long"
	msgCreated          = "User created successfully!"
	msgDuplicateEmail   = "User with this email already exists"
	msgNoUpdateData     = "No data provided for update"
	msgUpdated          = "User updated successfully"
	msgUnchanged        = "User found but no changes made (data was identical)"
	msgNotFound         = "User not found"
	msgDeleted          = "User deleted successfully"
	msgMissingSearch    = "Please provide a 'name' query parameter to search"
	msgMissingLogin     = "Missing email or password"
	msgInvalidLogin     = "Invalid credentials"
	msgRouteNotFound    = "Not Found"
	msgMethodNotAllowed = "Method Not Allowed"
)

// readinessTimeout bounds the store ping behind /readyz.
const readinessTimeout = time.Second

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the user service.
type HTTPTransport struct {
	userSvc *UserService
	log     logging.Logger
	cfg     HTTPTransportConfig
	router  chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires a UserService for handling user operations.
func NewHTTPTransport(userSvc *UserService, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		userSvc: userSvc,
		log:     logging.GetLogger("svc.usersvc.http_transport"),
		cfg:     cfg,
	}
	ht.router = ht.routes()

	return ht
}

// routes sets up the user service endpoints:
// - GET /: Welcome message
// - GET /users, POST /users: List and create users
// - GET, PUT, DELETE /user/{id}: Read, update and delete one user
// - GET /search?name=: Search users by name
// - POST /login: Check credentials
// - GET /healthz, /readyz, /metrics: Operational endpoints.
func (ht *HTTPTransport) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(http_.MetricsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = http_.WriteMessage(w, http.StatusNotFound, msgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		_ = http_.WriteMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Get("/", ht.HandleIndex)
	r.Get("/users", ht.HandleListUsers)
	r.Post("/users", ht.HandleCreateUser)
	r.Get("/user/{id:[0-9]+}", ht.HandleGetUser)
	r.Put("/user/{id:[0-9]+}", ht.HandleUpdateUser)
	r.Delete("/user/{id:[0-9]+}", ht.HandleDeleteUser)
	r.Get("/search", ht.HandleSearch)
	r.Post("/login", ht.HandleLogin)

	r.Get("/healthz", ht.HandleHealth)
	r.Get("/readyz", ht.HandleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

func (ht *HTTPTransport) requestLog(r *http.Request) logging.Logger {
	return ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))
}

// userID parses the {id} path parameter. The route pattern already
// restricts it to digits; out-of-range values are reported as not found.
func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	return id, err == nil
}

// writeFailure maps err to a status and fixed message. Causes are never sent to the client.
func writeFailure(w http.ResponseWriter, err error) error {
	var (
		status int
		msg    string
	)

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		status, msg = http.StatusNotFound, msgNotFound
	case errors.Is(err, domain.ErrDuplicateEmail):
		status, msg = http.StatusConflict, msgDuplicateEmail
	default:
		status, msg = http.StatusInternalServerError, http_.InternalErrorMessage
	}

	if writeErr := http_.WriteMessage(w, status, msg); writeErr != nil {
		return errors.Join(err, writeErr)
	}

	return err
}

// HandleIndex answers with the welcome message.
func (ht *HTTPTransport) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	_ = http_.WriteMessage(w, http.StatusOK, msgWelcome)
}

// HandleListUsers returns every user.
func (ht *HTTPTransport) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleListUsers(w, r)
}

func (ht *HTTPTransport) handleListUsers(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "list users failed", "error", err)
		} else {
			log.DebugContext(ctx, "users listed")
		}
	}(r.Context())

	users, err := ht.userSvc.ListUsers(r.Context())
	if err != nil {
		return writeFailure(w, fmt.Errorf("list users: %w", err))
	}

	return http_.WriteJSON(w, http.StatusOK, users)
}

// HandleGetUser returns one user.
func (ht *HTTPTransport) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetUser(w, r)
}

func (ht *HTTPTransport) handleGetUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "get user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user fetched")
		}
	}(r.Context())

	id, ok := userID(r)
	if !ok {
		return writeFailure(w, domain.ErrUserNotFound)
	}

	u, err := ht.userSvc.GetUser(r.Context(), id)
	if err != nil {
		return writeFailure(w, fmt.Errorf("get user: %w", err))
	}

	return http_.WriteJSON(w, http.StatusOK, u)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleCreateUser processes user creation requests.
// Expects a JSON body with name, email and password.
func (ht *HTTPTransport) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreateUser(w, r)
}

func (ht *HTTPTransport) handleCreateUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user created")
		}
	}(r.Context())

	var req createUserRequest
	if err := http_.DecodeJSON(w, r, ht.cfg.MaxBodyBytes, &req); err != nil {
		_ = http_.WriteMessage(w, http.StatusBadRequest, msgInvalidJSON)

		return err
	}

	log = log.With(logging.Group("user", "email", req.Email))

	id, err := ht.userSvc.CreateUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordTooLong):
			_ = http_.WriteMessage(w, http.StatusBadRequest, msgPasswordTooLong)
		case errors.Is(err, domain.ErrValidation):
			_ = http_.WriteMessage(w, http.StatusBadRequest, msgMissingCreate)
		default:
			return writeFailure(w, fmt.Errorf("create user: %w", err))
		}

		return fmt.Errorf("create user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, domain.UserCreatedResponse{Message: msgCreated, UserID: id})
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// HandleUpdateUser processes partial updates of name and/or email.
// Empty strings count as absent.
func (ht *HTTPTransport) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdateUser(w, r)
}

func (ht *HTTPTransport) handleUpdateUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "update user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user updated")
		}
	}(r.Context())

	id, ok := userID(r)
	if !ok {
		return writeFailure(w, domain.ErrUserNotFound)
	}

	var req updateUserRequest
	if err := http_.DecodeJSON(w, r, ht.cfg.MaxBodyBytes, &req); err != nil {
		_ = http_.WriteMessage(w, http.StatusBadRequest, msgInvalidJSON)

		return err
	}

	upd := domain.UserUpdate{Name: nonEmpty(req.Name), Email: nonEmpty(req.Email)}

	outcome, err := ht.userSvc.UpdateUser(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			_ = http_.WriteMessage(w, http.StatusBadRequest, msgNoUpdateData)

			return fmt.Errorf("update user: %w", err)
		}

		return writeFailure(w, fmt.Errorf("update user: %w", err))
	}

	msg := msgUpdated
	if outcome == UpdateUnchanged {
		msg = msgUnchanged
	}

	return http_.WriteMessage(w, http.StatusOK, msg)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}

// HandleDeleteUser removes one user.
func (ht *HTTPTransport) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDeleteUser(w, r)
}

func (ht *HTTPTransport) handleDeleteUser(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "delete user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user deleted")
		}
	}(r.Context())

	id, ok := userID(r)
	if !ok {
		return writeFailure(w, domain.ErrUserNotFound)
	}

	if err := ht.userSvc.DeleteUser(r.Context(), id); err != nil {
		return writeFailure(w, fmt.Errorf("delete user: %w", err))
	}

	return http_.WriteMessage(w, http.StatusOK, msgDeleted)
}

// HandleSearch returns users whose name contains the name query parameter.
func (ht *HTTPTransport) HandleSearch(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSearch(w, r)
}

func (ht *HTTPTransport) handleSearch(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "search users failed", "error", err)
		} else {
			log.DebugContext(ctx, "users searched")
		}
	}(r.Context())

	users, err := ht.userSvc.SearchUsers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			_ = http_.WriteMessage(w, http.StatusBadRequest, msgMissingSearch)

			return fmt.Errorf("search users: %w", err)
		}

		return writeFailure(w, fmt.Errorf("search users: %w", err))
	}

	return http_.WriteJSON(w, http.StatusOK, users)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin processes login requests.
// Expects a JSON body with email and password. An unknown email and a wrong
// password produce the same 401 response.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLog(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	var req loginRequest
	if err := http_.DecodeJSON(w, r, ht.cfg.MaxBodyBytes, &req); err != nil {
		_ = http_.WriteMessage(w, http.StatusBadRequest, msgInvalidJSON)

		return err
	}

	log = log.With(logging.Group("user", "email", req.Email))

	id, err := ht.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			_ = http_.WriteJSON(w, http.StatusUnauthorized, domain.LoginResponse{
				Status:  domain.LoginStatusFailed,
				Message: msgInvalidLogin,
			})
		case errors.Is(err, domain.ErrValidation):
			_ = http_.WriteMessage(w, http.StatusBadRequest, msgMissingLogin)
		default:
			return writeFailure(w, fmt.Errorf("login user: %w", err))
		}

		return fmt.Errorf("login user: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, domain.LoginResponse{Status: domain.LoginStatusSuccess, UserID: id})
}

// HandleHealth reports liveness.
func (ht *HTTPTransport) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = http_.WriteJSON(w, http.StatusOK, domain.StatusResponse{Status: "ok"})
}

// HandleReady reports whether the store answers a ping.
func (ht *HTTPTransport) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := ht.userSvc.Ping(ctx); err != nil {
		ht.requestLog(r).ErrorContext(r.Context(), "readiness check failed", "error", err)
		_ = http_.WriteJSON(w, http.StatusServiceUnavailable, domain.StatusResponse{Status: "db_not_ready"})

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, domain.StatusResponse{Status: "ready"})
}
