package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Negotiation layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrNoSession  = "E_NO_SESSION"
	ErrNotFound   = "E_NOT_FOUND"
	ErrAddFailed  = "E_ADD_FAILED"
	ErrConflict   = "E_CONFLICT"
	ErrRateLimit  = "E_RATE_LIMIT"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrNoSession:       {},
	ErrNotFound:        {},
	ErrAddFailed:       {},
	ErrConflict:        {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
