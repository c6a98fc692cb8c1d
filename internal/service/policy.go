package service

// RepairPolicy centralizes every repair bound of the generation
// pipeline so the state machine's cost ceiling is auditable in one
// place. The asymmetry is deliberate: structural fixes get a small
// loop, everything else gets exactly one corrective attempt, and a
// page that is still broken afterwards is accepted as-is rather than
// retried without bound against a live model.
type RepairPolicy struct {
	// MaxFixAttempts bounds the structural fix loop per page.
	MaxFixAttempts int
	// RegenAttempts bounds full-page regenerations after a failed
	// build cycle.
	RegenAttempts int
	// PatchAttempts bounds accessibility patch calls per page.
	PatchAttempts int
	// LinkFixPasses bounds link-repair passes per affected page.
	LinkFixPasses int
}

// DefaultRepairPolicy mirrors the documented bounds.
func DefaultRepairPolicy() RepairPolicy {
	return RepairPolicy{
		MaxFixAttempts: 2,
		RegenAttempts:  1,
		PatchAttempts:  1,
		LinkFixPasses:  1,
	}
}
