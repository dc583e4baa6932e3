package server

import "errors"

// ErrVerification means an inbound activity failed a domain, visibility,
// or authorization check. The activity is dropped and logged; there is no
// NACK channel back to the sender.
var ErrVerification = errors.New("activity verification failed")
