package htriedb

import "errors"

// ErrInvalidOptions indicates a bad Options value passed to Open.
var ErrInvalidOptions = errors.New("htriedb: invalid options")
