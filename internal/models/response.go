package models

// APIResponse is a generic API response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

// NewValidationErrorResponse creates a validation error response
func NewValidationErrorResponse(errors map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Validation failed",
		Errors:  errors,
	}
}

// AskResponse wraps a generated completion.
type AskResponse struct {
	Answer string `json:"answer"`
}

// AvatarUploadResponse is returned after an avatar image is accepted.
type AvatarUploadResponse struct {
	Size int `json:"size"`
}

// DeleteProfileResponse reports the outcome of a profile deletion. The
// identity-provider account has its own lifecycle and is never removed here.
type DeleteProfileResponse struct {
	Existed         bool `json:"existed"`
	AccountRetained bool `json:"account_retained"`
}
