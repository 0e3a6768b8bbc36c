package eventbus

import "errors"

var (
	errNoProducers         = errors.New("eventbus: no live producers")
	errUnknownSubscription = errors.New("eventbus: unknown subscription")
)
