package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"courseoj/internal/catalog/model"
	"courseoj/internal/common/cache"
	"courseoj/internal/common/db"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	problemDetailKeyPrefix = "problem:detail:"
)

var (
	ErrProblemNotFound = errors.New("problem not found")
)

// SortDirection orders a sort column.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SearchQuery is the normalized filter set for catalog searches.
// The service layer clamps pagination and resolves visibility before
// this reaches the repository.
type SearchQuery struct {
	SearchText     string
	Tags           []string
	MinDifficulty  float64
	MaxDifficulty  float64
	Status         model.DevStatus // empty means no status filter
	IDReverse      bool
	DifficultySort SortDirection // empty means no secondary sort
	Page           int
	Limit          int
}

// ProblemRepository persists catalog entries.
type ProblemRepository interface {
	Create(ctx context.Context, tx db.Transaction, problem *model.Problem) (int64, error)
	Get(ctx context.Context, tx db.Transaction, problemID int64) (model.Problem, error)
	Update(ctx context.Context, tx db.Transaction, problem *model.Problem) error
	UpdateStatus(ctx context.Context, tx db.Transaction, problemID int64, status model.DevStatus, rejectedMessage string) error
	Delete(ctx context.Context, tx db.Transaction, problemID int64) error
	Search(ctx context.Context, query SearchQuery) ([]model.Problem, int64, error)
	InvalidateCache(ctx context.Context, problemID int64)
}

type MySQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewProblemRepository(database db.Database, cacheClient cache.Cache) ProblemRepository {
	return &MySQLProblemRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultProblemTTL,
		emptyTTL: defaultProblemEmptyTTL,
	}
}

const problemColumns = `
	p.id, p.title, COALESCE(p.description, ''), p.default_code, p.solution_code,
	p.difficulty, p.time_limit_ms, p.header_mode, p.headers, p.function_mode,
	p.functions, p.tags, p.dev_status, COALESCE(p.rejected_message, ''),
	p.author_id, COALESCE(u.display_name, ''), p.created_at, p.updated_at`

const problemFrom = ` FROM problems p LEFT JOIN users u ON u.id = p.author_id`

func (r *MySQLProblemRepository) Create(ctx context.Context, tx db.Transaction, problem *model.Problem) (int64, error) {
	if problem == nil {
		return 0, errors.New("problem is nil")
	}
	if problem.DevStatus == "" {
		problem.DevStatus = model.StatusInProgress
	}
	if problem.TimeLimitMS == 0 {
		problem.TimeLimitMS = model.DefaultTimeLimitMS
	}

	query := `
		INSERT INTO problems
			(title, description, default_code, solution_code, difficulty, time_limit_ms,
			 header_mode, headers, function_mode, functions, tags, dev_status, author_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		problem.Title,
		problem.Description,
		problem.DefaultCode,
		problem.SolutionCode,
		problem.Difficulty,
		problem.TimeLimitMS,
		string(problem.HeaderMode),
		marshalStrings(problem.Headers),
		string(problem.FunctionMode),
		marshalStrings(problem.Functions),
		marshalStrings(problem.Tags),
		string(problem.DevStatus),
		problem.AuthorID,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	problem.ID = id
	return id, nil
}

func (r *MySQLProblemRepository) Get(ctx context.Context, tx db.Transaction, problemID int64) (model.Problem, error) {
	if r.cache != nil && tx == nil {
		problem, err := cache.GetWithCached[model.Problem](
			ctx,
			r.cache,
			problemDetailKey(problemID),
			r.ttl,
			r.emptyTTL,
			func(p model.Problem) bool { return p.ID == 0 },
			marshalProblem,
			unmarshalProblem,
			func(ctx context.Context) (model.Problem, error) {
				p, err := r.getFromDB(ctx, nil, problemID)
				if err != nil {
					if errors.Is(err, ErrProblemNotFound) {
						return model.Problem{}, nil
					}
					return model.Problem{}, err
				}
				return p, nil
			},
		)
		if err != nil {
			return model.Problem{}, err
		}
		if problem.ID == 0 {
			return model.Problem{}, ErrProblemNotFound
		}
		return problem, nil
	}
	return r.getFromDB(ctx, tx, problemID)
}

func (r *MySQLProblemRepository) Update(ctx context.Context, tx db.Transaction, problem *model.Problem) error {
	if problem == nil {
		return errors.New("problem is nil")
	}
	query := `
		UPDATE problems SET
			title = ?, description = ?, default_code = ?, solution_code = ?,
			difficulty = ?, time_limit_ms = ?, header_mode = ?, headers = ?,
			function_mode = ?, functions = ?, tags = ?
		WHERE id = ?`
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		problem.Title,
		problem.Description,
		problem.DefaultCode,
		problem.SolutionCode,
		problem.Difficulty,
		problem.TimeLimitMS,
		string(problem.HeaderMode),
		marshalStrings(problem.Headers),
		string(problem.FunctionMode),
		marshalStrings(problem.Functions),
		marshalStrings(problem.Tags),
		problem.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The row may exist with identical values; confirm before reporting
		if _, err := r.getFromDB(ctx, tx, problem.ID); err != nil {
			return err
		}
	}
	r.InvalidateCache(ctx, problem.ID)
	return nil
}

func (r *MySQLProblemRepository) UpdateStatus(ctx context.Context, tx db.Transaction, problemID int64, status model.DevStatus, rejectedMessage string) error {
	query := "UPDATE problems SET dev_status = ?, rejected_message = ? WHERE id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, string(status), rejectedMessage, problemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.getFromDB(ctx, tx, problemID); err != nil {
			return err
		}
	}
	r.InvalidateCache(ctx, problemID)
	return nil
}

func (r *MySQLProblemRepository) Delete(ctx context.Context, tx db.Transaction, problemID int64) error {
	query := "DELETE FROM problems WHERE id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, problemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProblemNotFound
	}
	r.InvalidateCache(ctx, problemID)
	return nil
}

// Search runs the filtered query plus a parallel count for pagination.
func (r *MySQLProblemRepository) Search(ctx context.Context, query SearchQuery) ([]model.Problem, int64, error) {
	where, args := buildSearchPredicates(query)

	countQuery := "SELECT COUNT(*)" + problemFrom + where
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	listQuery := "SELECT" + problemColumns + problemFrom + where + buildOrderBy(query) + " LIMIT ? OFFSET ?"
	listArgs := append(append([]any{}, args...), query.Limit, offset)

	rows, err := r.db.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	problems := make([]model.Problem, 0, query.Limit)
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return problems, total, nil
}

// InvalidateCache drops the cached detail row for a problem.
func (r *MySQLProblemRepository) InvalidateCache(ctx context.Context, problemID int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, problemDetailKey(problemID))
}

func (r *MySQLProblemRepository) getFromDB(ctx context.Context, tx db.Transaction, problemID int64) (model.Problem, error) {
	query := "SELECT" + problemColumns + problemFrom + " WHERE p.id = ?"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, problemID)
	problem, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Problem{}, ErrProblemNotFound
		}
		return model.Problem{}, err
	}
	return problem, nil
}

func buildSearchPredicates(query SearchQuery) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 8)

	if text := strings.TrimSpace(query.SearchText); text != "" {
		pattern := "%" + strings.ToLower(text) + "%"
		clauses = append(clauses, "(LOWER(p.title) LIKE ? OR LOWER(COALESCE(u.display_name, '')) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	if len(query.Tags) > 0 {
		clauses = append(clauses, "JSON_OVERLAPS(p.tags, CAST(? AS JSON))")
		args = append(args, marshalStrings(query.Tags))
	}

	clauses = append(clauses, "p.difficulty >= ? AND p.difficulty <= ?")
	args = append(args, query.MinDifficulty, query.MaxDifficulty)

	if query.Status != "" {
		clauses = append(clauses, "p.dev_status = ?")
		args = append(args, string(query.Status))
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrderBy(query SearchQuery) string {
	idDirection := SortAsc
	if query.IDReverse {
		idDirection = SortDesc
	}
	order := " ORDER BY p.id " + string(idDirection)
	if query.DifficultySort == SortAsc || query.DifficultySort == SortDesc {
		order += ", p.difficulty " + string(query.DifficultySort)
	}
	return order
}

func scanProblem(scanner db.Scanner) (model.Problem, error) {
	var (
		p             model.Problem
		headerMode    string
		functionMode  string
		devStatus     string
		headersJSON   string
		functionsJSON string
		tagsJSON      string
	)
	err := scanner.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.DefaultCode,
		&p.SolutionCode,
		&p.Difficulty,
		&p.TimeLimitMS,
		&headerMode,
		&headersJSON,
		&functionMode,
		&functionsJSON,
		&tagsJSON,
		&devStatus,
		&p.RejectedMessage,
		&p.AuthorID,
		&p.AuthorName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return model.Problem{}, err
	}
	p.HeaderMode = model.ListMode(headerMode)
	p.FunctionMode = model.ListMode(functionMode)
	p.DevStatus = model.DevStatus(devStatus)
	p.Headers = unmarshalStrings(headersJSON)
	p.Functions = unmarshalStrings(functionsJSON)
	p.Tags = unmarshalStrings(tagsJSON)
	return p, nil
}

func problemDetailKey(problemID int64) string {
	return problemDetailKeyPrefix + strconv.FormatInt(problemID, 10)
}

func marshalProblem(problem model.Problem) string {
	payload, err := json.Marshal(problem)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblem(data string) (model.Problem, error) {
	if data == "" {
		return model.Problem{}, nil
	}
	var problem model.Problem
	if err := json.Unmarshal([]byte(data), &problem); err != nil {
		return model.Problem{}, err
	}
	return problem, nil
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(payload)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
