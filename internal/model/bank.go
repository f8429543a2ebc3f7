package model

import "time"

// BankConfig is one bank integration as the client sees it.
type BankConfig struct {
	Code          string
	Name          string
	SenderPattern string
	AccountSuffix string // empty when the bank has no suffix filter
	IsEnabled     bool
	IsCustom      bool
	LastSyncAt    *time.Time
}

// Clone returns a copy that shares no pointers with b.
func (b BankConfig) Clone() BankConfig {
	if b.LastSyncAt != nil {
		t := *b.LastSyncAt
		b.LastSyncAt = &t
	}
	return b
}

// BankStatus is the server's view of a bank's enabled flag and last sync.
type BankStatus struct {
	Enabled  bool
	LastSync *time.Time
}

// ToggleAck is the server's acknowledgement of an enable/disable request.
type ToggleAck struct {
	LastSyncAt *time.Time
}

// CustomBankInput holds the user-supplied fields of a custom bank.
type CustomBankInput struct {
	Name          string
	SenderPattern string
	AccountSuffix string
}
