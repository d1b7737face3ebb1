package fetch

import "fmt"

// pathNotFoundError signals that a caller-supplied model path does not exist.
// This is a configuration error; no download is attempted.
type pathNotFoundError struct{ path string }

func (e pathNotFoundError) Error() string {
	return "model path does not exist: " + e.path + " (check the path or provide a model URL to download)"
}

// ErrPathNotFound constructs a pathNotFoundError.
func ErrPathNotFound(path string) error { return pathNotFoundError{path: path} }

// IsPathNotFound reports whether err indicates a missing explicit model path.
func IsPathNotFound(err error) bool {
	_, ok := err.(pathNotFoundError)
	return ok
}

// tooSmallError signals that the remote content is too small to be a real
// model artifact.
type tooSmallError struct {
	size int64
	min  int64
}

func (e tooSmallError) Error() string {
	return fmt.Sprintf("content should be at least %d bytes, but is only %d bytes", e.min, e.size)
}

// IsTooSmall reports whether err indicates a failed minimum-size validation.
func IsTooSmall(err error) bool {
	_, ok := err.(tooSmallError)
	return ok
}

// incompleteError signals a failed download. The partial file has already
// been removed when this error is returned.
type incompleteError struct{ cause error }

func (e incompleteError) Error() string { return "download incomplete: " + e.cause.Error() }

func (e incompleteError) Unwrap() error { return e.cause }

// IsIncomplete reports whether err indicates an aborted download.
func IsIncomplete(err error) bool {
	_, ok := err.(incompleteError)
	return ok
}
