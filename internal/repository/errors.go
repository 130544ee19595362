package repository

import "errors"

// ErrNotFound is returned when the chat an operation names does not exist:
// by GetChat, UpdateChatTitle, DeleteChat and AddMessage. The service layer
// turns it into app_errors.ErrNotFound in mapRepoError, so callers never see
// sql.ErrNoRows.
var ErrNotFound = errors.New("repository: not found")
