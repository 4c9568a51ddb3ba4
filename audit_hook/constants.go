package audithook

// Action constants for audit events.
const (
	// Protocol actions
	ActionProtocolInitialized = "protocol.initialized"

	// Platform actions
	ActionPlatformCreated = "platform.created"

	// Subscription actions
	ActionSubscriptionCreated = "subscription.created"
	ActionSubscriptionRenewed = "subscription.renewed"
	ActionSubscriptionRemoved = "subscription.removed"

	// Payment actions
	ActionPaymentProcessed = "payment.processed"
	ActionPaymentRejected  = "payment.rejected"

	// Treasury actions
	ActionTreasuryWithdrawn = "treasury.withdrawn"
	ActionEscrowCredited    = "escrow.credited"

	// History actions
	ActionHistoryFlushed = "history.flushed"
)

// Resource constants for audit events.
const (
	ResourceProtocol     = "protocol"
	ResourcePlatform     = "platform"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceTreasury     = "treasury"
	ResourceEscrow       = "escrow"
	ResourceHistory      = "history"
)

// Category constants for audit events.
const (
	CategoryBilling      = "billing"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryTreasury     = "treasury"
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
	OutcomePartial = "partial"
)
