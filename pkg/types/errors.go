package types

import "errors"

var (
	ErrBlankName         = errors.New("name cannot be blank")
	ErrValueTooLong      = errors.New("value exceeds maximum length")
	ErrConflictingFlags  = errors.New("variable cannot be both a string and a number")
	ErrImmutableFlags    = errors.New("variable flags are immutable")
	ErrDuplicateVariable = errors.New("variable already exists")
	ErrVariableNotFound  = errors.New("variable not found")
	ErrDuplicateCommand  = errors.New("instant command already exists")
	ErrCommandNotFound   = errors.New("instant command not found")
	ErrAlreadyLoggedIn   = errors.New("client already logged in")
	ErrInvalidRange      = errors.New("range minimum exceeds maximum")
)
