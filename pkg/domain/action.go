package domain

import "fmt"

type Action string

const (
	ActionTransfer        Action = "Transfer"
	ActionTransferCustody Action = "TransferCustody"
	ActionInitialTransfer Action = "InitialTransfer"
	ActionUse             Action = "Use"
	ActionWork            Action = "Work"
	ActionModify          Action = "Modify"
	ActionMove            Action = "Move"
	ActionProduce         Action = "Produce"
	ActionRaise           Action = "Raise"
	ActionLower           Action = "Lower"
)

var validActions = map[Action]struct{}{
	ActionTransfer:        {},
	ActionTransferCustody: {},
	ActionInitialTransfer: {},
	ActionUse:             {},
	ActionWork:            {},
	ActionModify:          {},
	ActionMove:            {},
	ActionProduce:         {},
	ActionRaise:           {},
	ActionLower:           {},
}

// ParseAction rejects unknown action strings instead of defaulting.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := validActions[a]; !ok {
		return "", NewValidationError(fmt.Sprintf("unknown action %q", s), "use one of the documented action kinds")
	}
	return a, nil
}

// ProcessType qualifies role-specific actions (e.g. Work under "Transport").
type ProcessType string

const (
	ProcessUse         ProcessType = "Use"
	ProcessTransport   ProcessType = "Transport"
	ProcessStorage     ProcessType = "Storage"
	ProcessRepair      ProcessType = "Repair"
	ProcessMaintenance ProcessType = "Maintenance"
)
