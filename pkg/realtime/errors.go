package realtime

import "errors"

var (
	ErrNotConnected   = errors.New("not connected to server")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrNoIncomingCall = errors.New("no incoming call")
	ErrNoCurrentCall  = errors.New("no active call")
	ErrAlreadyOnCall  = errors.New("agent already on a call")
	ErrNoIdentity     = errors.New("agent identity not provided")
	ErrMissingCallID  = errors.New("missing call id")
	ErrHandshake      = errors.New("server did not acknowledge the connection")
)
