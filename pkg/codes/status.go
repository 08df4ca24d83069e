package codes

// Message lifecycle statuses. Transitions are forward-only except an
// explicit resend, which resets a message back to pending.
const (
	MsgStatusPending   = "pending"
	MsgStatusSent      = "sent"
	MsgStatusDelivered = "delivered"
	MsgStatusFailed    = "failed"
)

// Delivery report final statuses as carried in provider pushes.
const (
	ReportStatusDelivered     = "DELIVRD"
	ReportStatusExpired       = "EXPIRED"
	ReportStatusDeleted       = "DELETED"
	ReportStatusUndeliverable = "UNDELIV"
	ReportStatusAccepted      = "ACCEPTD"
	ReportStatusRejected      = "REJECTD"
	ReportStatusUnknown       = "UNKNOWN"
)

// Ledger transaction types.
const (
	TxTypeDebit    = "debit"
	TxTypeReversal = "reversal"
)

// Balance types. One owner can hold several wallets, one per type.
const (
	BalanceTypeIndividual = "individual"
	BalanceTypeCompany    = "company"
)

// Contact validation statuses.
const (
	ContactStatusActive  = "active"
	ContactStatusInvalid = "invalid"
)

// Template approval statuses.
const (
	TemplateStatusApproved = "approved"
	TemplateStatusPending  = "pending"
	TemplateStatusRejected = "rejected"
)

// Gateway submission error codes recorded on failed messages.
const (
	ErrorCodeGatewayTimeout    = "GW_TIMEOUT"
	ErrorCodeGatewayWindowFull = "GW_WINDOW_FULL"
	ErrorCodeGatewayNotBound   = "GW_NOT_BOUND"
	ErrorCodeSystemError       = "SYS_ERR"
)

// IsFinalReportStatus reports whether a delivery report status terminates
// the message lifecycle. A push carrying only a correlation id and never
// one of these must not be treated as terminal.
func IsFinalReportStatus(status string) bool {
	switch status {
	case ReportStatusDelivered, ReportStatusExpired, ReportStatusDeleted,
		ReportStatusUndeliverable, ReportStatusRejected:
		return true
	}
	return false
}

// MessageStatusForReport maps a final delivery report status onto the
// persisted message status.
func MessageStatusForReport(status string) string {
	if status == ReportStatusDelivered {
		return MsgStatusDelivered
	}
	return MsgStatusFailed
}
