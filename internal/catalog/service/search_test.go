package service_test

import (
	"context"
	"testing"

	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/service"
	pkgerrors "courseoj/pkg/errors"
)

type searchFixture struct {
	problems *fakeProblemRepo
	progress *fakeProgressRepo
	search   *service.SearchService
}

func newSearchFixture() *searchFixture {
	problems := newFakeProblemRepo()
	progress := newFakeProgressRepo()
	return &searchFixture{
		problems: problems,
		progress: progress,
		search:   service.NewSearchService(problems, progress),
	}
}

func TestSearchClampsQuery(t *testing.T) {
	f := newSearchFixture()

	_, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{
		Page:          -3,
		Limit:         5000,
		MinDifficulty: -1,
		MaxDifficulty: 99,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	query := f.problems.lastQuery
	if query.Page != 1 {
		t.Fatalf("page should clamp to 1, got %d", query.Page)
	}
	if query.Limit != 100 {
		t.Fatalf("limit should clamp to 100, got %d", query.Limit)
	}
	if query.MinDifficulty != model.MinDifficulty || query.MaxDifficulty != model.MaxDifficulty {
		t.Fatalf("difficulty should clamp to bounds, got [%v, %v]", query.MinDifficulty, query.MaxDifficulty)
	}

	// A zero limit falls back to the default page size.
	if _, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.problems.lastQuery.Limit != 20 {
		t.Fatalf("limit should default to 20, got %d", f.problems.lastQuery.Limit)
	}

	_, err = f.search.Search(context.Background(), memberCaller, service.SearchInput{MinDifficulty: 4, MaxDifficulty: 2})
	assertCode(t, err, pkgerrors.ValidationFailed)

	_, err = f.search.Search(context.Background(), memberCaller, service.SearchInput{DifficultySortBy: "sideways"})
	assertCode(t, err, pkgerrors.ValidationFailed)
}

func TestSearchMemberAlwaysPublished(t *testing.T) {
	f := newSearchFixture()

	// The member surface ignores any status filter it is handed.
	_, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{Status: "IN_PROGRESS"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.problems.lastQuery.Status != model.StatusPublished {
		t.Fatalf("member query must filter to PUBLISHED, got %q", f.problems.lastQuery.Status)
	}
}

func TestSearchStaffView(t *testing.T) {
	f := newSearchFixture()

	_, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{StaffView: true})
	assertCode(t, err, pkgerrors.InsufficientPermission)

	_, err = f.search.Search(context.Background(), staffCaller, service.SearchInput{StaffView: true, Status: "need_review"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.problems.lastQuery.Status != model.StatusNeedReview {
		t.Fatalf("staff status filter lost, got %q", f.problems.lastQuery.Status)
	}

	// No status filter means all lifecycle states.
	_, err = f.search.Search(context.Background(), staffCaller, service.SearchInput{StaffView: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.problems.lastQuery.Status != "" {
		t.Fatalf("staff query without filter should carry no status, got %q", f.problems.lastQuery.Status)
	}

	_, err = f.search.Search(context.Background(), staffCaller, service.SearchInput{StaffView: true, Status: "BOGUS"})
	assertCode(t, err, pkgerrors.ValidationFailed)
}

func TestSearchProjectsProgressForMembers(t *testing.T) {
	f := newSearchFixture()
	f.problems.searchResult = []model.Problem{
		{ID: 1, Title: "A", Difficulty: 1, DevStatus: model.StatusPublished},
		{ID: 2, Title: "B", Difficulty: 2, DevStatus: model.StatusPublished},
		{ID: 3, Title: "C", Difficulty: 3, DevStatus: model.StatusPublished},
	}
	f.problems.searchTotal = 3
	_ = f.progress.Upsert(context.Background(), memberCaller.ID, 1, model.ProgressSolved)
	_ = f.progress.Upsert(context.Background(), memberCaller.ID, 2, model.ProgressAttempted)

	result, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []model.ProgressStatus{model.ProgressSolved, model.ProgressAttempted, model.ProgressNotStarted}
	for i, item := range result.Items {
		if item.Progress != want[i] {
			t.Fatalf("item %d: expected progress %s, got %s", i, want[i], item.Progress)
		}
		if item.DevStatus != "" {
			t.Fatalf("item %d: members must not see lifecycle state, got %q", i, item.DevStatus)
		}
	}
}

func TestSearchShowsDevStatusForStaff(t *testing.T) {
	f := newSearchFixture()
	f.problems.searchResult = []model.Problem{
		{ID: 1, Title: "A", Difficulty: 1, DevStatus: model.StatusRejected},
	}
	f.problems.searchTotal = 1

	result, err := f.search.Search(context.Background(), staffCaller, service.SearchInput{StaffView: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Items[0].DevStatus != model.StatusRejected {
		t.Fatalf("expected REJECTED, got %q", result.Items[0].DevStatus)
	}
	if result.Items[0].Progress != "" {
		t.Fatalf("staff hits carry no progress, got %q", result.Items[0].Progress)
	}
}

func TestSearchPagination(t *testing.T) {
	f := newSearchFixture()
	f.problems.searchResult = nil
	f.problems.searchTotal = 41

	result, err := f.search.Search(context.Background(), memberCaller, service.SearchInput{Page: 9, Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Past the last page: empty data, intact bookkeeping.
	if len(result.Items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(result.Items))
	}
	if result.Total != 41 || result.Page != 9 || result.Limit != 20 {
		t.Fatalf("unexpected bookkeeping %+v", result)
	}
	if result.TotalPage != 3 {
		t.Fatalf("expected 3 total pages for 41 rows at 20 per page, got %d", result.TotalPage)
	}
}
