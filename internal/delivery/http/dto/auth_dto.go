package dto

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string      `json:"token"`
	User  *UserOutput `json:"user"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username     string `json:"username" form:"username"`
	Password     string `json:"password" form:"password"`
	Confirmation string `json:"confirmation" form:"confirmation"`
}

// ChangePasswordRequest represents the password change payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
	Confirmation    string `json:"confirmation" form:"confirmation"`
}

// UsernameCheckOutput answers GET /api/auth/check
type UsernameCheckOutput struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}
