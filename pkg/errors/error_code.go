package errors

// ErrorCode identifies a class of failure.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199). These fail fast at construction time.
	ErrCodeInvalidConfiguration  ErrorCode = 100
	ErrCodeInvalidScheduleField  ErrorCode = 101
	ErrCodeInvalidScheduleValue  ErrorCode = 102
	ErrCodeInvalidTimeRange      ErrorCode = 103
	ErrCodeInvalidParameter      ErrorCode = 104
	ErrCodeMissingParameter      ErrorCode = 105
	ErrCodeInvalidCommissionMode ErrorCode = 106

	// Data errors (200-299)
	ErrCodeDataUnavailable ErrorCode = 200
	ErrCodeNoDataFound     ErrorCode = 201
	ErrCodeQueryFailed     ErrorCode = 202
	ErrCodeFeedClosed      ErrorCode = 203
	ErrCodeSubscribeFailed ErrorCode = 204
	ErrCodeInvalidWindow   ErrorCode = 205

	// Indicator errors (300-399)
	ErrCodeInsufficientData ErrorCode = 300
	ErrCodeInvalidPeriod    ErrorCode = 301

	// Strategy errors (400-499)
	ErrCodeStrategyInitFailed ErrorCode = 400
	ErrCodeStrategyRunFailed  ErrorCode = 401
	ErrCodeStrategyDetached   ErrorCode = 402
	ErrCodeVersionMismatch    ErrorCode = 403
	ErrCodeContextFrozen      ErrorCode = 404

	// Trading errors (500-599)
	ErrCodeInvalidOrder      ErrorCode = 500
	ErrCodeInsufficientFunds ErrorCode = 501
	ErrCodeUnknownSymbol     ErrorCode = 502
	ErrCodeInvalidPrice      ErrorCode = 503
	ErrCodeOrderNotFound     ErrorCode = 504

	// Engine errors (600-699). Clock or execution context init failures are fatal.
	ErrCodeClockInitFailed     ErrorCode = 600
	ErrCodeExecutionInitFailed ErrorCode = 601
	ErrCodeNoStrategies        ErrorCode = 602
	ErrCodeStoreFailed         ErrorCode = 603
	ErrCodeEngineStopped       ErrorCode = 604

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeInvalidProvider       ErrorCode = 702
)
