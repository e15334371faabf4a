package ytdlp

import "fmt"

type CommandError struct {
	Op      string
	Err     error
	Message string
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func newCommandError(op string, err error, message string) *CommandError {
	return &CommandError{
		Op:      op,
		Err:     err,
		Message: message,
	}
}
