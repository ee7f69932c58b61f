package models

// UserProfile is the sole entity of the user directory. Documents live in the
// "users" collection and are keyed by the identity provider's UID, except for
// admin-created entries which get a generated id.
//
// The original data model stored the raw password in the document; here only a
// bcrypt hash is persisted and credentials are verified by the identity
// provider.
type UserProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	// AvatarImage is a base64-encoded inline image payload, empty if unset.
	AvatarImage string `json:"image,omitempty"`
}

// Fields returns the document representation used for write-through calls.
func (p UserProfile) Fields() map[string]any {
	return map[string]any{
		"username":      p.Username,
		"email":         p.Email,
		"password_hash": p.PasswordHash,
		"image":         p.AvatarImage,
	}
}

// ProfileFromFields rebuilds a UserProfile from a raw document as delivered by
// a snapshot. Unknown fields are ignored, missing fields default to empty.
func ProfileFromFields(id string, data map[string]any) UserProfile {
	p := UserProfile{ID: id}
	p.Username, _ = data["username"].(string)
	p.Email, _ = data["email"].(string)
	p.PasswordHash, _ = data["password_hash"].(string)
	p.AvatarImage, _ = data["image"].(string)
	return p
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// AvatarImage is optional base64 image data picked at registration time.
	AvatarImage string `json:"image,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
	Role  string      `json:"role"`
}

// SaveProfileRequest is the self-profile "save" payload. It is written with
// merge semantics: only supplied fields change, the rest of the document is
// preserved.
type SaveProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// AvatarImage is only written when non-nil so an untouched avatar survives
	// a merge save.
	AvatarImage *string `json:"image"`
}

// UpdateUserRequest is the admin edit payload. It is written with replace
// semantics: the document becomes exactly these fields.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Username == "" {
		errors["username"] = "Username is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *SaveProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Username == "" {
		errors["username"] = "Username is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *UpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Username == "" {
		errors["username"] = "Username is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}
