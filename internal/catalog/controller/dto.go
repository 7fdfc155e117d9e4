package controller

import (
	"time"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/service"
)

// CreateProblemRequest defines the problem creation payload.
type CreateProblemRequest struct {
	Title        string                  `json:"title" binding:"required"`
	Description  string                  `json:"description"`
	DefaultCode  string                  `json:"default_code"`
	SolutionCode string                  `json:"solution_code" binding:"required"`
	Difficulty   float64                 `json:"difficulty" binding:"required"`
	TimeLimitMS  int                     `json:"time_limit_ms"`
	HeaderMode   string                  `json:"header_mode"`
	Headers      []string                `json:"headers"`
	FunctionMode string                  `json:"function_mode"`
	Functions    []string                `json:"functions"`
	Tags         []string                `json:"tags"`
	TestCases    []CreateTestCaseRequest `json:"test_cases" binding:"required"`
}

// CreateTestCaseRequest is one authored test case. The expected output is
// derived from the solution code, never accepted from the caller.
type CreateTestCaseRequest struct {
	Input    string `json:"input"`
	IsHidden bool   `json:"is_hidden"`
}

// UpdateProblemRequest defines the partial update payload. Absent fields
// stay untouched.
type UpdateProblemRequest struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	DefaultCode  *string   `json:"default_code"`
	SolutionCode *string   `json:"solution_code"`
	Difficulty   *float64  `json:"difficulty"`
	TimeLimitMS  *int      `json:"time_limit_ms"`
	HeaderMode   *string   `json:"header_mode"`
	Headers      *[]string `json:"headers"`
	FunctionMode *string   `json:"function_mode"`
	Functions    *[]string `json:"functions"`
	Tags         *[]string `json:"tags"`
	AuthorID     *int64    `json:"author_id"`
}

// RejectProblemRequest carries the mandatory rejection message.
type RejectProblemRequest struct {
	Message string `json:"message" binding:"required"`
}

// ProblemResponse is the problem payload. Staff-only fields are omitted
// for member callers.
type ProblemResponse struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DefaultCode     string   `json:"default_code"`
	SolutionCode    string   `json:"solution_code,omitempty"`
	Difficulty      float64  `json:"difficulty"`
	TimeLimitMS     int      `json:"time_limit_ms"`
	HeaderMode      string   `json:"header_mode"`
	Headers         []string `json:"headers"`
	FunctionMode    string   `json:"function_mode"`
	Functions       []string `json:"functions"`
	Tags            []string `json:"tags"`
	DevStatus       string   `json:"dev_status,omitempty"`
	RejectedMessage string   `json:"rejected_message,omitempty"`
	AuthorID        int64    `json:"author_id"`
	AuthorName      string   `json:"author_name"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// TestCaseResponse is one test case in a detail view. Hidden cases are
// absent entirely for member callers, so this always carries full data.
type TestCaseResponse struct {
	ID           int64  `json:"id"`
	ProblemID    int64  `json:"problem_id"`
	Input        string `json:"input"`
	ExpectOutput string `json:"expect_output"`
	IsHidden     bool   `json:"is_hidden"`
}

// ProblemDetailResponse is a problem with its test cases.
type ProblemDetailResponse struct {
	ProblemResponse
	TestCases []TestCaseResponse `json:"test_cases"`
}

func toProblemResponse(problem model.Problem, caller access.Caller) ProblemResponse {
	resp := ProblemResponse{
		ID:           problem.ID,
		Title:        problem.Title,
		Description:  problem.Description,
		DefaultCode:  problem.DefaultCode,
		Difficulty:   problem.Difficulty,
		TimeLimitMS:  problem.TimeLimitMS,
		HeaderMode:   string(problem.HeaderMode),
		Headers:      problem.Headers,
		FunctionMode: string(problem.FunctionMode),
		Functions:    problem.Functions,
		Tags:         problem.Tags,
		AuthorID:     problem.AuthorID,
		AuthorName:   problem.AuthorName,
		CreatedAt:    problem.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    problem.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if caller.Role.Elevated() {
		resp.SolutionCode = problem.SolutionCode
		resp.DevStatus = string(problem.DevStatus)
		resp.RejectedMessage = problem.RejectedMessage
	}
	return resp
}

func toProblemDetailResponse(detail service.ProblemDetail, caller access.Caller) ProblemDetailResponse {
	resp := ProblemDetailResponse{
		ProblemResponse: toProblemResponse(detail.Problem, caller),
		TestCases:       make([]TestCaseResponse, 0, len(detail.TestCases)),
	}
	showHidden := access.Allows(caller.Role, access.CapViewHiddenData)
	for _, testCase := range detail.TestCases {
		if testCase.IsHidden && !showHidden {
			continue
		}
		resp.TestCases = append(resp.TestCases, toTestCaseResponse(testCase))
	}
	return resp
}

func toTestCaseResponse(testCase model.TestCase) TestCaseResponse {
	return TestCaseResponse{
		ID:           testCase.ID,
		ProblemID:    testCase.ProblemID,
		Input:        testCase.Input,
		ExpectOutput: testCase.ExpectOutput,
		IsHidden:     testCase.IsHidden,
	}
}
