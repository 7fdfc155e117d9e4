package repository

import (
	"context"
	"errors"

	"courseoj/internal/catalog/model"
	"courseoj/internal/common/db"
)

var (
	ErrTestCaseNotFound = errors.New("test case not found")
)

// TestCaseCounts summarizes the hidden/visible split for a problem.
type TestCaseCounts struct {
	Visible int64
	Hidden  int64
}

// TestCaseRepository persists derived test cases. Rows are only ever
// written by the verifier, which owns expect_output derivation.
type TestCaseRepository interface {
	Create(ctx context.Context, tx db.Transaction, testCase *model.TestCase) (int64, error)
	Get(ctx context.Context, tx db.Transaction, testCaseID int64) (model.TestCase, error)
	Update(ctx context.Context, tx db.Transaction, testCase *model.TestCase) error
	Delete(ctx context.Context, tx db.Transaction, testCaseID int64) error
	DeleteByProblem(ctx context.Context, tx db.Transaction, problemID int64) error
	ListByProblem(ctx context.Context, tx db.Transaction, problemID int64) ([]model.TestCase, error)
	CountByProblem(ctx context.Context, tx db.Transaction, problemID int64) (TestCaseCounts, error)
}

type MySQLTestCaseRepository struct {
	db db.Database
}

func NewTestCaseRepository(database db.Database) TestCaseRepository {
	return &MySQLTestCaseRepository{db: database}
}

const testCaseColumns = "id, problem_id, input, expect_output, is_hidden, created_at, updated_at"

func (r *MySQLTestCaseRepository) Create(ctx context.Context, tx db.Transaction, testCase *model.TestCase) (int64, error) {
	if testCase == nil {
		return 0, errors.New("test case is nil")
	}
	query := "INSERT INTO test_cases (problem_id, input, expect_output, is_hidden) VALUES (?, ?, ?, ?)"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		testCase.ProblemID, testCase.Input, testCase.ExpectOutput, testCase.IsHidden)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	testCase.ID = id
	return id, nil
}

func (r *MySQLTestCaseRepository) Get(ctx context.Context, tx db.Transaction, testCaseID int64) (model.TestCase, error) {
	query := "SELECT " + testCaseColumns + " FROM test_cases WHERE id = ?"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, testCaseID)
	testCase, err := scanTestCase(row)
	if err != nil {
		if db.IsNoRows(err) {
			return model.TestCase{}, ErrTestCaseNotFound
		}
		return model.TestCase{}, err
	}
	return testCase, nil
}

func (r *MySQLTestCaseRepository) Update(ctx context.Context, tx db.Transaction, testCase *model.TestCase) error {
	if testCase == nil {
		return errors.New("test case is nil")
	}
	query := "UPDATE test_cases SET input = ?, expect_output = ?, is_hidden = ? WHERE id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query,
		testCase.Input, testCase.ExpectOutput, testCase.IsHidden, testCase.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, tx, testCase.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLTestCaseRepository) Delete(ctx context.Context, tx db.Transaction, testCaseID int64) error {
	query := "DELETE FROM test_cases WHERE id = ?"
	result, err := db.GetQuerier(r.db, tx).Exec(ctx, query, testCaseID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTestCaseNotFound
	}
	return nil
}

func (r *MySQLTestCaseRepository) DeleteByProblem(ctx context.Context, tx db.Transaction, problemID int64) error {
	query := "DELETE FROM test_cases WHERE problem_id = ?"
	_, err := db.GetQuerier(r.db, tx).Exec(ctx, query, problemID)
	return err
}

func (r *MySQLTestCaseRepository) ListByProblem(ctx context.Context, tx db.Transaction, problemID int64) ([]model.TestCase, error) {
	query := "SELECT " + testCaseColumns + " FROM test_cases WHERE problem_id = ? ORDER BY id ASC"
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		testCase, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		testCases = append(testCases, testCase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return testCases, nil
}

func (r *MySQLTestCaseRepository) CountByProblem(ctx context.Context, tx db.Transaction, problemID int64) (TestCaseCounts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN is_hidden = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_hidden = 1 THEN 1 ELSE 0 END), 0)
		FROM test_cases WHERE problem_id = ?`
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, problemID)
	var counts TestCaseCounts
	if err := row.Scan(&counts.Visible, &counts.Hidden); err != nil {
		return TestCaseCounts{}, err
	}
	return counts, nil
}

func scanTestCase(scanner db.Scanner) (model.TestCase, error) {
	var testCase model.TestCase
	err := scanner.Scan(
		&testCase.ID,
		&testCase.ProblemID,
		&testCase.Input,
		&testCase.ExpectOutput,
		&testCase.IsHidden,
		&testCase.CreatedAt,
		&testCase.UpdatedAt,
	)
	if err != nil {
		return model.TestCase{}, err
	}
	return testCase, nil
}
