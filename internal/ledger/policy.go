package ledger

import (
	"fmt"

	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

// Mode selects how workers decide which tasks they may act on. It must be
// configured consistently for a given ledger file; mixing modes against the
// same ledger is a deployment error this code cannot detect from data shape.
type Mode int

const (
	// ModeSelfAssign lets any worker claim an unowned pending task;
	// first committed claim wins.
	ModeSelfAssign Mode = iota
	// ModePreAssigned restricts each worker to tasks already carrying its
	// identity in sentBy from the upstream partitioning step.
	ModePreAssigned
)

func (m Mode) String() string {
	switch m {
	case ModeSelfAssign:
		return "self_assign"
	case ModePreAssigned:
		return "pre_assigned"
	default:
		return "unknown"
	}
}

// ParseMode converts the config string form of a claim mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "self_assign":
		return ModeSelfAssign, nil
	case "pre_assigned":
		return ModePreAssigned, nil
	default:
		return ModeSelfAssign, fmt.Errorf("unknown claim mode %q", s)
	}
}

// Policy decides the claimable task set for one worker under one mode.
type Policy struct {
	Mode   Mode
	Worker string
}

// Claimable reports whether the worker may act on the task right now.
func (p Policy) Claimable(t models.Task) bool {
	if t.Sent {
		return false
	}
	switch p.Mode {
	case ModeSelfAssign:
		// Unowned tasks are open to any worker; owned pending tasks stay
		// with their owner so a prior failure can be retried by it.
		return t.SentBy == "" || t.SentBy == p.Worker
	case ModePreAssigned:
		return t.SentBy == p.Worker
	default:
		return false
	}
}

// Orphaned reports whether the task can never be dispatched under this
// policy: pending but unassigned while the ledger is pre-assigned. The
// dispatch loop logs these once per run so a bad partitioning step is
// visible rather than silent.
func (p Policy) Orphaned(t models.Task) bool {
	return p.Mode == ModePreAssigned && !t.Sent && t.SentBy == ""
}
