package dtaforge

import "context"

// Approver handles user interaction for approval workflows,
// particularly for destructive operations like overwriting existing
// sink tables.
//
// Implementations:
//   - ForcedApprover: Shows countdown and automatically approves
//   - InteractiveApprover: Prompts user to type the table prefix for confirmation
type Approver interface {
	// RequestApproval prompts for confirmation before dropping and
	// recreating the named output target.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - target: Name of the output target to be overwritten
	//
	// Returns:
	//   - bool: true if approved, false if denied
	//   - error: Any error that occurred during the approval process
	RequestApproval(ctx context.Context, target string) (bool, error)
}
