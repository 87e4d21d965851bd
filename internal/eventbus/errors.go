package eventbus

import "errors"

// ErrBusClosed - шина закрыта и больше не принимает события
var ErrBusClosed = errors.New("event bus closed")
