package conversation

import "errors"

var (
	ErrConversationEnded  = errors.New("conversation already ended")
	ErrNotStarted         = errors.New("conversation not started")
	ErrAlreadyStarted     = errors.New("conversation already started")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrInsufficientFocus  = errors.New("not enough focus")
	ErrNoCardsSelected    = errors.New("no cards selected")
	ErrDuplicateSelection = errors.New("card selected more than once")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
