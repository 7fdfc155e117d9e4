package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"courseoj/internal/common/http/middleware"
	"courseoj/internal/judge/service"
	"courseoj/pkg/utils/response"
)

// JudgeController handles submission grading requests.
type JudgeController struct {
	judgeService *service.Service
}

// NewJudgeController creates a new JudgeController.
func NewJudgeController(judgeService *service.Service) *JudgeController {
	return &JudgeController{judgeService: judgeService}
}

// Submit grades candidate code against a problem and returns the verdict.
func (h *JudgeController) Submit(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	verdict, err := h.judgeService.Judge(c.Request.Context(), caller, problemID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := VerdictResponse{
		ProblemID: verdict.ProblemID,
		Pass:      verdict.Pass,
		Cases:     make([]CaseResultResponse, 0, len(verdict.Cases)),
	}
	for _, result := range verdict.Cases {
		resp.Cases = append(resp.Cases, CaseResultResponse{
			TestCaseID:   result.TestCaseID,
			Pass:         result.Pass,
			Input:        result.Input,
			Output:       result.Output,
			ExpectOutput: result.ExpectOutput,
			ExitStatus:   string(result.ExitStatus),
			UsedTime:     result.UsedTime,
			Hidden:       result.Hidden,
		})
	}
	response.Success(c, resp)
}

// SubmitRequest carries the candidate source code.
type SubmitRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerdictResponse is the grading outcome for one submission.
type VerdictResponse struct {
	ProblemID int64                `json:"problem_id"`
	Pass      bool                 `json:"pass"`
	Cases     []CaseResultResponse `json:"cases"`
}

// CaseResultResponse is the verdict for one test case. Input, output and
// expected output are absent on hidden cases for member callers.
type CaseResultResponse struct {
	TestCaseID   int64  `json:"test_case_id"`
	Pass         bool   `json:"pass"`
	Input        string `json:"input,omitempty"`
	Output       string `json:"output,omitempty"`
	ExpectOutput string `json:"expect_output,omitempty"`
	ExitStatus   string `json:"exit_status"`
	UsedTime     int64  `json:"used_time"`
	Hidden       bool   `json:"hidden"`
}
