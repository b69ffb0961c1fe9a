package airquality

import (
	"errors"
	"fmt"
)

// Gateway errors.
var (
	// ErrTransport covers unreachable providers and non-2xx responses.
	ErrTransport = errors.New("air quality provider unavailable")

	// ErrNotFound is returned when geocoding yields no matches.
	ErrNotFound = errors.New("no matching location found")

	// ErrMalformedResponse is a transport-equivalent failure for payloads
	// missing expected fields. errors.Is(err, ErrTransport) holds for it.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrTransport)

	ErrInvalidCoordinates = errors.New("invalid coordinates")
)
