package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrEmptyBook     = errors.New("order book is empty")
	ErrPathExecuting = errors.New("path is already being executed")
)
