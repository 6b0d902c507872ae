package db

// Relay transaction status, stored with the same spelling as the legacy relayer table
const (
	RELAY_STATUS_PENDING              = "Pending"
	RELAY_STATUS_SIGNATURES_COLLECTED = "SignaturesCollected"
	RELAY_STATUS_SUBMITTED            = "Submitted"
	RELAY_STATUS_CONFIRMED            = "Confirmed"
	RELAY_STATUS_FAILED               = "Failed"
)

// relayStatusOrder ranks the non-failed statuses, a row may only move to a higher rank
var relayStatusOrder = map[string]int{
	RELAY_STATUS_PENDING:              0,
	RELAY_STATUS_SIGNATURES_COLLECTED: 1,
	RELAY_STATUS_SUBMITTED:            2,
	RELAY_STATUS_CONFIRMED:            3,
}

// IsTerminalRelayStatus reports whether no further transition is allowed
func IsTerminalRelayStatus(status string) bool {
	return status == RELAY_STATUS_CONFIRMED || status == RELAY_STATUS_FAILED
}

// CanTransitRelayStatus reports whether from -> to follows
// Pending -> SignaturesCollected -> Submitted -> Confirmed, with Failed reachable from any non-terminal status.
func CanTransitRelayStatus(from, to string) bool {
	if IsTerminalRelayStatus(from) {
		return false
	}
	if _, ok := relayStatusOrder[from]; !ok {
		return false
	}
	if to == RELAY_STATUS_FAILED {
		return true
	}
	toRank, ok := relayStatusOrder[to]
	if !ok {
		return false
	}
	return toRank == relayStatusOrder[from]+1
}

// AllRelayStatuses in lifecycle order
func AllRelayStatuses() []string {
	return []string{
		RELAY_STATUS_PENDING,
		RELAY_STATUS_SIGNATURES_COLLECTED,
		RELAY_STATUS_SUBMITTED,
		RELAY_STATUS_CONFIRMED,
		RELAY_STATUS_FAILED,
	}
}
