package control

import "errors"

var (
	// ErrNoSession is returned by Set and Release when no key is held.
	ErrNoSession = errors.New("control: no session held")

	// ErrSessionHeld is returned by Acquire when this console already
	// holds a key.
	ErrSessionHeld = errors.New("control: session already held")
)
