package errors

import sterrors "errors"

var (
	ErrModuleRequired       = sterrors.New("shardwire: handler module is required")
	ErrHandlerRequired      = sterrors.New("shardwire: handler function is required")
	ErrHandlerNotFunc       = sterrors.New("shardwire: handler must be a function")
	ErrMarkerRequired       = sterrors.New("shardwire: at least one event marker is required")
	ErrEventRequired        = sterrors.New("shardwire: marker event category is required")
	ErrUnknownEvent         = sterrors.New("shardwire: unknown event category")
	ErrUnknownIntents       = sterrors.New("shardwire: marker carries unknown intent bits")
	ErrDuplicateHandlerName = sterrors.New("shardwire: handler name already bound to another function")
	ErrCatalogRequired      = sterrors.New("shardwire: handler catalog is required")
	ErrTargetRequired       = sterrors.New("shardwire: event target is required")
	ErrCapabilitiesRequired = sterrors.New("shardwire: capabilities must be computed from a catalog")
	ErrTokenRequired        = sterrors.New("shardwire: gateway token is required")
	ErrConfigRequired       = sterrors.New("shardwire: configuration is required")
	ErrLoggerRequired       = sterrors.New("shardwire: logger is required")
	ErrTransportRequired    = sterrors.New("shardwire: transport publisher and subscriber are required")
	ErrConnectorRequired    = sterrors.New("shardwire: connector is required")
	ErrSequencerReused      = sterrors.New("shardwire: sequencer can only run once")
	ErrTargetStarted        = sterrors.New("shardwire: target already started")
	ErrCommandNameRequired  = sterrors.New("shardwire: command name is required")
	ErrCommandRunRequired   = sterrors.New("shardwire: command run function is required")
	ErrCommandExists        = sterrors.New("shardwire: command name or alias already registered")
	ErrCommandNotFound      = sterrors.New("shardwire: command not found")
)

// Diagnostic kinds. Per-entry failures wrap the first three and are reported
// without stopping the bootstrap; the last two abort it.
var (
	ErrMalformedDeclaration = sterrors.New("shardwire: malformed handler declaration")
	ErrSignatureMismatch    = sterrors.New("shardwire: handler signature does not match event")
	ErrLateRegistration     = sterrors.New("shardwire: handler registered after target started")
	ErrLoadFailure          = sterrors.New("shardwire: handler module could not be loaded")
	ErrNegotiationFailure   = sterrors.New("shardwire: gateway negotiation failed")
)

// ConfigValidationError marks a configuration that failed Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "shardwire: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
