package llms

import "github.com/cockroachdb/errors"

var (
	// ErrUnexpectedRole is returned when a message role is of an unexpected type.
	ErrUnexpectedRole = errors.New("unexpected role")

	// ErrTransport marks failures to reach the model endpoint:
	// DNS, connection, TLS, timeouts and cancellations.
	ErrTransport = errors.New("model transport failure")
	// ErrAuthentication marks responses rejected because of credentials.
	ErrAuthentication = errors.New("model authentication failure")
	// ErrModelAPI marks any other non-success response from the model endpoint.
	ErrModelAPI = errors.New("model API failure")
	// ErrMalformedResponse marks responses that could not be interpreted:
	// undecodable bodies, empty choices, tool arguments that are not a JSON object.
	ErrMalformedResponse = errors.New("malformed model response")
)

// IsModelError returns true if err belongs to one of the model invocation classes.
func IsModelError(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrModelAPI) ||
		errors.Is(err, ErrMalformedResponse)
}
