package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated   = "stream.created"
	ActionStreamActivated = "stream.activated"
	ActionStreamPaused    = "stream.paused"
	ActionStreamResumed   = "stream.resumed"
	ActionStreamCancelled = "stream.cancelled"
	ActionWithdrawn       = "stream.withdrawn"

	// Registry actions
	ActionFeeRateChanged   = "registry.fee_rate_changed"
	ActionAssetWhitelisted = "registry.asset_whitelisted"
	ActionFeesCollected    = "registry.fees_collected"
)

// Resource constants for audit events.
const (
	ResourceStream   = "stream"
	ResourceRegistry = "registry"
	ResourceAsset    = "asset"
)

// Category constants for audit events.
const (
	CategoryStream     = "stream"
	CategoryPayment    = "payment"
	CategoryGovernance = "governance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
