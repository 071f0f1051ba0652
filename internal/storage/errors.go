package storage

import "errors"

var (
	ErrNotebookNotFound     = errors.New("notebook not found")
	ErrSourceNotFound       = errors.New("source not found")
	ErrPresentationNotFound = errors.New("presentation not found")
	ErrInvalidData          = errors.New("invalid data")
	ErrStorageInit          = errors.New("storage initialization failed")
	ErrFileOperation        = errors.New("file operation failed")
)
