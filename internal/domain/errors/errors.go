package errors

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("Task not found or unauthorized")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUsernameTaken      = errors.New("Username already taken")
	ErrNoToken            = errors.New("No token provided")
	ErrInvalidToken       = errors.New("Invalid or expired token")
	ErrInternalServer     = errors.New("internal server error")
	ErrBadRequest         = errors.New("invalid request body")
	ErrValidationFailed   = errors.New("validation failed")
	ErrPastDeadline       = errors.New("Deadline must be a future date")
	ErrMissingFields      = errors.New("All fields are required")

	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("password must be between 8 and 72 characters")
	ErrInvalidPriority    = errors.New("priority must be Low, Medium or High")
	ErrInvalidTitle       = errors.New("invalid task title")
	ErrInvalidDescription = errors.New("invalid task description")
	ErrInvalidDeadline    = errors.New("invalid task deadline")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid config value")
	ErrGzipFailed           = errors.New("gzip compression failed")
)
