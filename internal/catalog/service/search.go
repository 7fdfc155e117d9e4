package service

import (
	"context"
	"fmt"
	"strings"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/repository"
	pkgerrors "courseoj/pkg/errors"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchService answers catalog queries for both the member and the
// staff surface.
type SearchService struct {
	problems repository.ProblemRepository
	progress repository.ProgressRepository
}

// NewSearchService creates a SearchService.
func NewSearchService(problems repository.ProblemRepository, progress repository.ProgressRepository) *SearchService {
	return &SearchService{
		problems: problems,
		progress: progress,
	}
}

// SearchInput carries the raw, unclamped query as received from the
// transport layer.
type SearchInput struct {
	SearchText       string
	Tags             []string
	MinDifficulty    float64
	MaxDifficulty    float64
	Status           string
	IDReverse        bool
	DifficultySortBy string
	StaffView        bool
	Page             int
	Limit            int
}

// ProblemSummary is one search hit. DevStatus is populated only on the
// staff surface; Progress only on the member surface.
type ProblemSummary struct {
	ID         int64
	Title      string
	Difficulty float64
	Tags       []string
	AuthorName string
	DevStatus  model.DevStatus
	Progress   model.ProgressStatus
}

// SearchResult is a page of hits with pagination bookkeeping.
type SearchResult struct {
	Items     []ProblemSummary
	Total     int64
	Page      int
	Limit     int
	TotalPage int
}

// Search runs a catalog query. The member surface only ever sees
// published problems and gets its own progress per hit instead of the
// staff lifecycle state. A page past the end returns an empty result,
// not an error.
func (s *SearchService) Search(ctx context.Context, caller access.Caller, input SearchInput) (SearchResult, error) {
	if input.StaffView {
		if err := access.Evaluate(caller, access.RequireCapability(access.CapStaffSearch)); err != nil {
			return SearchResult{}, err
		}
	}

	query, err := s.buildQuery(input)
	if err != nil {
		return SearchResult{}, err
	}

	problems, total, err := s.problems.Search(ctx, query)
	if err != nil {
		return SearchResult{}, pkgerrors.Wrap(fmt.Errorf("search problems failed: %w", err), pkgerrors.DatabaseError)
	}

	items := make([]ProblemSummary, 0, len(problems))
	for _, problem := range problems {
		item := ProblemSummary{
			ID:         problem.ID,
			Title:      problem.Title,
			Difficulty: problem.Difficulty,
			Tags:       problem.Tags,
			AuthorName: problem.AuthorName,
		}
		if input.StaffView {
			item.DevStatus = problem.DevStatus
		}
		items = append(items, item)
	}

	if !input.StaffView {
		if err := s.attachProgress(ctx, caller.ID, items); err != nil {
			return SearchResult{}, err
		}
	}

	totalPage := int((total + int64(query.Limit) - 1) / int64(query.Limit))
	return SearchResult{
		Items:     items,
		Total:     total,
		Page:      query.Page,
		Limit:     query.Limit,
		TotalPage: totalPage,
	}, nil
}

func (s *SearchService) buildQuery(input SearchInput) (repository.SearchQuery, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	minDifficulty := input.MinDifficulty
	if minDifficulty < model.MinDifficulty {
		minDifficulty = model.MinDifficulty
	}
	maxDifficulty := input.MaxDifficulty
	if maxDifficulty <= 0 || maxDifficulty > model.MaxDifficulty {
		maxDifficulty = model.MaxDifficulty
	}
	if minDifficulty > maxDifficulty {
		return repository.SearchQuery{}, pkgerrors.ValidationError("difficulty", "minDifficulty exceeds maxDifficulty")
	}

	var status model.DevStatus
	if input.StaffView {
		if input.Status != "" {
			status = model.DevStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
			if !status.Valid() {
				return repository.SearchQuery{}, pkgerrors.ValidationError("status", "unknown lifecycle status")
			}
		}
	} else {
		// Members never see anything but published problems, whatever
		// status filter they asked for.
		status = model.StatusPublished
	}

	var difficultySort repository.SortDirection
	switch strings.ToUpper(strings.TrimSpace(input.DifficultySortBy)) {
	case "":
	case string(repository.SortAsc):
		difficultySort = repository.SortAsc
	case string(repository.SortDesc):
		difficultySort = repository.SortDesc
	default:
		return repository.SearchQuery{}, pkgerrors.ValidationError("difficultySortBy", "must be ASC or DESC")
	}

	return repository.SearchQuery{
		SearchText:     strings.TrimSpace(input.SearchText),
		Tags:           input.Tags,
		MinDifficulty:  minDifficulty,
		MaxDifficulty:  maxDifficulty,
		Status:         status,
		IDReverse:      input.IDReverse,
		DifficultySort: difficultySort,
		Page:           page,
		Limit:          limit,
	}, nil
}

func (s *SearchService) attachProgress(ctx context.Context, userID int64, items []ProblemSummary) error {
	for i := range items {
		items[i].Progress = model.ProgressNotStarted
	}
	if len(items) == 0 || userID <= 0 {
		return nil
	}
	problemIDs := make([]int64, len(items))
	for i, item := range items {
		problemIDs[i] = item.ID
	}
	statuses, err := s.progress.GetStatuses(ctx, userID, problemIDs)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("load progress failed: %w", err), pkgerrors.DatabaseError)
	}
	for i := range items {
		status, ok := statuses[items[i].ID]
		if !ok {
			status = model.ProgressNotStarted
		}
		items[i].Progress = status
	}
	return nil
}
