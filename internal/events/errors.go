package events

import "errors"

// ErrStoreWrite wraps every failed persistence call made by the emitter
var ErrStoreWrite = errors.New("store write failed")
