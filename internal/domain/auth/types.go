package auth

// Package auth contains domain-level types for authentication and the client session.
// It is pure and free of framework/adapter concerns.

import "strings"

// Status drives what the presentation layer may do with the session.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
	StatusError           Status = "error"
)

// IsTerminal reports whether the bootstrap sequence may stop at this status.
func (s Status) IsTerminal() bool {
	return s == StatusUnauthenticated || s == StatusAuthenticated || s == StatusError
}

// ErrorKind records why the last session transition failed.
// The zero value means no error.
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorAuthCheckFailed   ErrorKind = "auth_check_failed"
	ErrorLoginFailed       ErrorKind = "login_failed"
	ErrorCodeRequestFailed ErrorKind = "code_request_failed"
)

// Message returns the user-facing text for the error kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorAuthCheckFailed:
		return "Authentication check failed"
	case ErrorLoginFailed:
		return "Login failed"
	case ErrorCodeRequestFailed:
		return "Failed to send verification code"
	default:
		return ""
	}
}

// Theme is the user's display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a stored preference to a Theme, falling back to light.
func ParseTheme(v string) Theme {
	if Theme(strings.ToLower(strings.TrimSpace(v))) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Profile holds denormalized user attributes.
type Profile struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone_number,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Identity is the user record returned by the profile endpoint.
// Adapters map provider-specific payloads into this shape.
type Identity struct {
	Username string
	Profile  Profile
}

// TokenPair is the credential pair issued by the token and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both tokens are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Credentials are the inputs of the verification-code login flow.
type Credentials struct {
	Username string `json:"username"`
	Phone    string `json:"phone_number"`
	Code     string `json:"code"`
}

// CodeReceipt is the provider-defined body returned by the code request endpoint.
type CodeReceipt map[string]any

// Session is the process-wide client session record.
// RefreshToken never leaves the owning manager; use Snapshot for presentation.
type Session struct {
	Status       Status
	AccessToken  string
	RefreshToken string `json:"-"`
	Username     string
	Profile      Profile
	Theme        Theme
	LastError    ErrorKind
}

// NewSession returns a session in the Initializing state.
func NewSession() Session {
	return Session{Status: StatusInitializing, Theme: ThemeLight}
}

// SignedOut returns the unauthenticated defaults, keeping device preferences.
func (s Session) SignedOut() Session {
	return Session{Status: StatusUnauthenticated, Theme: s.Theme}
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Status          Status    `json:"status"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Username        string    `json:"username,omitempty"`
	Profile         Profile   `json:"profile"`
	Theme           Theme     `json:"theme"`
	IsDarkMode      bool      `json:"is_dark_mode"`
	LastError       ErrorKind `json:"last_error,omitempty"`
	Ready           bool      `json:"ready"`
}

// Snapshot builds the presentation view of the session.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Status:          s.Status,
		IsAuthenticated: s.Status == StatusAuthenticated,
		Username:        s.Username,
		Profile:         s.Profile,
		Theme:           s.Theme,
		IsDarkMode:      s.Theme == ThemeDark,
		LastError:       s.LastError,
		Ready:           s.Status.IsTerminal(),
	}
}
