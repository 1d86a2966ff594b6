package domain

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrTurnInFlight         = errors.New("turn already in flight")
	ErrEmptyPrompt          = errors.New("prompt and attachments both empty")
	ErrModelNotFound        = errors.New("model not found")
	ErrForkDepth            = errors.New("forking a forked session is not supported")
	ErrNoSessionSelected    = errors.New("no session selected")
	ErrAttachmentUnreadable = errors.New("attachment unreadable")
)
