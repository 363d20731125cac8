package httpdto

// LoginRequest is used for POST /v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token string `json:"token"`
}
