package types

// Topics the ledger consumes
const (
	TopicInstallationCompleted = "ledger.installation_completed"
	TopicPeriodRollover        = "ledger.period_rollover"
	TopicPaymentReceived       = "ledger.payment_received"
)

// LedgerEventName names an outbound notification published after a ledger transaction commits
type LedgerEventName string

const (
	EventChargeCreated    LedgerEventName = "charge.created"
	EventChargeCancelled  LedgerEventName = "charge.cancelled"
	EventPaymentAllocated LedgerEventName = "payment.allocated"
	EventPaymentCancelled LedgerEventName = "payment.cancelled"
	EventCreditRecorded   LedgerEventName = "credit.recorded"
)

func (e LedgerEventName) String() string {
	return string(e)
}
