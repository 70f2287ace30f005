package repository

import "errors"

// Common repository errors
var (
	// ErrBoardNotFound is returned when a board is not found
	ErrBoardNotFound = errors.New("board not found")

	// ErrColumnNotFound is returned when a column is not found
	ErrColumnNotFound = errors.New("column not found")

	// ErrCardNotFound is returned when a card is not found
	ErrCardNotFound = errors.New("card not found")

	// ErrCommentNotFound is returned when a comment is not found
	ErrCommentNotFound = errors.New("comment not found")

	// ErrMemberNotFound is returned when a board membership is not found
	ErrMemberNotFound = errors.New("board member not found")

	// ErrColumnNotEmpty is returned when deleting a column that still holds cards
	ErrColumnNotEmpty = errors.New("column still contains cards")
)
