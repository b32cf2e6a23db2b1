package taskname

const (
	// Gateway confirmations
	BillingRegistrationConfirm = "billing:registration:confirm"
	BillingPaymentConfirm      = "billing:payment:confirm"

	// Sweeps, enqueued by the admin trigger
	SweepRun = "sweep:run"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
