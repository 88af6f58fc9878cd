package domain

// LoginStatusSuccess and LoginStatusFailed are the values of LoginResponse.Status.
const (
	LoginStatusSuccess = "success"
	LoginStatusFailed  = "failed"
)

// MessageResponse is the body of every non-list response that has nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserCreatedResponse is returned after a user has been created.
type UserCreatedResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// LoginResponse is returned by the login endpoint.
// UserID is only set on success, Message only on failure.
type LoginResponse struct {
	Status  string `json:"status"`
	UserID  int64  `json:"user_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is returned by the health endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}
