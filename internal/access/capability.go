package access

// Capability names a single permission a role may hold. Handlers and
// services check capabilities instead of comparing role names directly,
// so adding a role is a table change rather than a code sweep.
type Capability string

const (
	// CapViewUnpublished allows reading problems in any lifecycle status
	CapViewUnpublished Capability = "view_unpublished"

	// CapManageProblems allows creating, updating and deleting problems
	// and their test cases
	CapManageProblems Capability = "manage_problems"

	// CapReviewProblems allows lifecycle transitions that require review
	// authority (publish, reject, archive)
	CapReviewProblems Capability = "review_problems"

	// CapStaffSearch allows the staff search surface with status filters
	// and hidden data in results
	CapStaffSearch Capability = "staff_search"

	// CapViewHiddenData allows seeing inputs and outputs of hidden test
	// cases in judge results
	CapViewHiddenData Capability = "view_hidden_data"

	// CapJudgeAnyStatus allows submitting against problems that are not
	// published yet
	CapJudgeAnyStatus Capability = "judge_any_status"

	// CapSubmit allows submitting candidate code for judging
	CapSubmit Capability = "submit"
)

// grants is the role capability table.
var grants = map[Role]map[Capability]bool{
	RoleDev: {
		CapViewUnpublished: true,
		CapManageProblems:  true,
		CapReviewProblems:  true,
		CapStaffSearch:     true,
		CapViewHiddenData:  true,
		CapJudgeAnyStatus:  true,
		CapSubmit:          true,
	},
	RoleStaff: {
		CapViewUnpublished: true,
		CapManageProblems:  true,
		CapReviewProblems:  true,
		CapStaffSearch:     true,
		CapViewHiddenData:  true,
		CapJudgeAnyStatus:  true,
		CapSubmit:          true,
	},
	RoleMember: {
		CapSubmit: true,
	},
}

// Allows reports whether the role holds the capability.
func Allows(role Role, cap Capability) bool {
	caps, ok := grants[role]
	if !ok {
		return false
	}
	return caps[cap]
}
