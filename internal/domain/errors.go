package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id is not registered.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose id is already taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomFull is returned when a join would exceed room capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrDuplicateUsername is returned when a join reuses a username already in the roster.
	ErrDuplicateUsername = errors.New("username already taken in room")
	// ErrPlayerNotFound is returned when a user acts before joining.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrGameAlreadyStarted rejects a second start-game request for the same room.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrNoActiveQuestion is returned when an answer arrives before game start
	// or after the last question.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrOutOfRange is returned when the question cursor has moved past the end.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrQuestionSetNotFound indicates the question content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
