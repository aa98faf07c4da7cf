package journal

import (
	"fmt"
)

// FormatError indicates an on-disk journal that cannot be interpreted:
// a bad header, an invalid record length, or a missing recovery file.
type FormatError struct {
	Msg string
}

func (e FormatError) Error() string {
	return "journal format error: " + e.Msg
}

func formatErrorf(format string, args ...interface{}) FormatError {
	return FormatError{Msg: fmt.Sprintf(format, args...)}
}
