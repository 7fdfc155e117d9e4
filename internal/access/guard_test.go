package access

import (
	"testing"

	"courseoj/pkg/errors"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		raw  string
		want Role
	}{
		{"dev", RoleDev},
		{" STAFF ", RoleStaff},
		{"Member", RoleMember},
	}
	for _, tc := range cases {
		role, err := ParseRole(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if role != tc.want {
			t.Fatalf("parse %q: expected %s, got %s", tc.raw, tc.want, role)
		}
	}

	if _, err := ParseRole("root"); !errors.Is(err, errors.InvalidRole) {
		t.Fatalf("expected InvalidRole, got %v", err)
	}
}

func TestElevated(t *testing.T) {
	if !RoleDev.Elevated() || !RoleStaff.Elevated() {
		t.Fatal("dev and staff are elevated roles")
	}
	if RoleMember.Elevated() {
		t.Fatal("member is not an elevated role")
	}
}

func TestGrantsTable(t *testing.T) {
	elevatedCaps := []Capability{
		CapViewUnpublished, CapManageProblems, CapReviewProblems,
		CapStaffSearch, CapViewHiddenData, CapJudgeAnyStatus, CapSubmit,
	}
	for _, cap := range elevatedCaps {
		if !Allows(RoleDev, cap) || !Allows(RoleStaff, cap) {
			t.Fatalf("elevated roles should hold %s", cap)
		}
	}

	if !Allows(RoleMember, CapSubmit) {
		t.Fatal("members may submit")
	}
	for _, cap := range []Capability{CapManageProblems, CapReviewProblems, CapStaffSearch, CapViewHiddenData} {
		if Allows(RoleMember, cap) {
			t.Fatalf("members must not hold %s", cap)
		}
	}

	if Allows(Role("UNKNOWN"), CapSubmit) {
		t.Fatal("unknown roles hold nothing")
	}
}

func TestEvaluateReturnsFirstDeny(t *testing.T) {
	caller := Caller{ID: 1, Role: RoleMember}

	err := Evaluate(caller,
		RequireCapability(CapSubmit),
		RequireCapability(CapManageProblems),
		RequireCapability(CapReviewProblems),
	)
	if !errors.Is(err, errors.InsufficientPermission) {
		t.Fatalf("expected InsufficientPermission, got %v", err)
	}

	if err := Evaluate(caller, RequireCapability(CapSubmit)); err != nil {
		t.Fatalf("passing chain should not error: %v", err)
	}

	// An empty chain allows.
	if err := Evaluate(caller); err != nil {
		t.Fatalf("empty chain should allow: %v", err)
	}
}

func TestRequireVisible(t *testing.T) {
	member := Caller{ID: 1, Role: RoleMember}
	staff := Caller{ID: 2, Role: RoleStaff}

	if err := Evaluate(member, RequireVisible(true)); err != nil {
		t.Fatalf("published problems are visible to members: %v", err)
	}
	if err := Evaluate(staff, RequireVisible(false)); err != nil {
		t.Fatalf("staff see unpublished problems: %v", err)
	}
	err := Evaluate(member, RequireVisible(false))
	if !errors.Is(err, errors.ProblemAccessDenied) {
		t.Fatalf("expected ProblemAccessDenied, got %v", err)
	}
}
