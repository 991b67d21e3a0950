package service

import "errors"

var (
	ErrNoteNotFound     = errors.New("note not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrEnvelopeNotFound = errors.New("envelope not found")
	ErrLabelNotFound    = errors.New("label not found")
	ErrSyncKeyMissing   = errors.New("sync password required to enable sync")
	ErrInvalidImport    = errors.New("invalid import data")
)
