package domain

// Status tracks a path through analysis and execution. It is stored as a
// plain string so the database and logs stay readable.
type Status string

const (
	StatusBare          Status = "bare"          // freshly generated, not yet investigated
	StatusProfitable    Status = "profitable"    // convergence cleared the gain bar
	StatusUnprofitable  Status = "unprofitable"  // convergence did not clear the bar
	StatusStart         Status = "start"         // about to place the first order
	StatusDone          Status = "done"          // all four steps completed
	StatusError         Status = "error"         // a pre-trade check failed; path abandoned
	StatusUnrecoverable Status = "unrecoverable" // balance never converged; operator needed
)

// stepNames gives the per-step status prefix. Odd steps buy, even steps sell.
var stepNames = [4]string{"buy1", "sell2", "buy3", "sell4"}

var balanceNames = [4]string{"balance1good", "balance2good", "balance3good", "balance4good"}

// StatusOrderPlace is the state in which the step's limit order is about to
// be placed: buy1place, sell2place, buy3place, sell4place.
func StatusOrderPlace(step int) Status {
	return Status(stepNames[step-1] + "place")
}

// StatusOrderPlaced is the state after the exchange confirmed the order with
// an order ID.
func StatusOrderPlaced(step int) Status {
	return Status(stepNames[step-1] + "placed")
}

// StatusOrderUncertain is the state after an ambiguous placement result: the
// exchange returned no order ID but may have accepted the order anyway.
func StatusOrderUncertain(step int) Status {
	return Status(stepNames[step-1] + "uncertain")
}

// StatusBalanceGood is the state in which the step's resulting balance is
// being verified.
func StatusBalanceGood(step int) Status {
	return Status(balanceNames[step-1])
}

// StatusAfterBalance is the state that follows a successful balance
// verification: the next step's placement, or done after step 4.
func StatusAfterBalance(step int) Status {
	if step >= 4 {
		return StatusDone
	}
	return StatusOrderPlace(step + 1)
}

// Phase is the position of a per-step status within the step lifecycle.
type Phase int

const (
	PhaseNone      Phase = iota
	PhasePlace           // the order for this step still has to be placed
	PhaseUncertain       // placement outcome unknown, locate the order first
	PhasePlaced          // order confirmed, move on to balance verification
	PhaseBalance         // verifying the step's resulting balance
)

// StepPhase decomposes a per-step status into its phase and 1-based step.
// For statuses that are not step-bound (bare, done, error, ...) it returns
// PhaseNone and 0.
func (s Status) StepPhase() (Phase, int) {
	for i := 0; i < 4; i++ {
		switch s {
		case Status(stepNames[i] + "place"):
			return PhasePlace, i + 1
		case Status(stepNames[i] + "uncertain"):
			return PhaseUncertain, i + 1
		case Status(stepNames[i] + "placed"):
			return PhasePlaced, i + 1
		case Status(balanceNames[i]):
			return PhaseBalance, i + 1
		}
	}
	return PhaseNone, 0
}

// Terminal reports whether the path needs no further driving. Done paths are
// kept for the record, error and unprofitable paths expire, unrecoverable
// paths wait for an operator.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusUnprofitable, StatusUnrecoverable:
		return true
	}
	return false
}
