package errors

import "github.com/pkg/errors"

var (
	ErrChainNotFound       = errors.New("chain not found")
	ErrInvalidConfig       = errors.New("invalid chain configuration")
	ErrChainExists         = errors.New("chain already exists in registry")
	ErrFactoryNotProvided  = errors.New("chain factory not provided")
	ErrInvalidChainType    = errors.New("invalid chain type")
	ErrNotImplemented      = errors.New("functionality not implemented")
	ErrSignerNotConfigured = errors.New("signing account not configured")
	ErrBusNotConnected     = errors.New("solver bus not connected")
	ErrSwapNotFound        = errors.New("swap record not found")
	ErrMonitorTimeout      = errors.New("settlement monitoring timed out")
	ErrDatabaseConnect     = errors.New("failed to connect to database")
)
