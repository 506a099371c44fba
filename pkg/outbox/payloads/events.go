package payloads

import (
	"github.com/shopspring/decimal"
)

// PaymentSettled is emitted when a bank transfer settles one or more order groups.
type PaymentSettled struct {
	PaymentRecordID string          `json:"paymentRecordId"`
	OrderGroupIDs   []string        `json:"orderGroupIds"`
	SettledGroupIDs []string        `json:"settledGroupIds"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ProviderTxnID   int64           `json:"providerTxnId"`
	ReferenceCode   string          `json:"referenceCode"`
}

// PaymentInstructionCreated is emitted when checkout issues a transfer instruction.
type PaymentInstructionCreated struct {
	PaymentRecordID string          `json:"paymentRecordId"`
	OrderGroupIDs   []string        `json:"orderGroupIds"`
	Amount          decimal.Decimal `json:"amount"`
	InstructionURL  string          `json:"instructionUrl"`
}
