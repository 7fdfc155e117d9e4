package controller

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/service"
	"courseoj/internal/common/http/middleware"
	"courseoj/pkg/utils/response"
)

// ProblemController handles problem authoring and lifecycle endpoints.
type ProblemController struct {
	problemService *service.ProblemService
}

// NewProblemController creates a new ProblemController.
func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// Create handles problem creation.
func (h *ProblemController) Create(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req CreateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	input := service.CreateProblemInput{
		Title:        req.Title,
		Description:  req.Description,
		DefaultCode:  req.DefaultCode,
		SolutionCode: req.SolutionCode,
		Difficulty:   req.Difficulty,
		TimeLimitMS:  req.TimeLimitMS,
		HeaderMode:   model.ListMode(req.HeaderMode),
		Headers:      req.Headers,
		FunctionMode: model.ListMode(req.FunctionMode),
		Functions:    req.Functions,
		Tags:         req.Tags,
	}
	for _, testCase := range req.TestCases {
		input.TestCases = append(input.TestCases, service.TestCaseInput{
			Input:    testCase.Input,
			IsHidden: testCase.IsHidden,
		})
	}

	problem, err := h.problemService.CreateProblem(c.Request.Context(), caller, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toProblemResponse(problem, caller))
}

// Get handles problem detail queries.
func (h *ProblemController) Get(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.problemService.GetProblem(c.Request.Context(), caller, problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toProblemDetailResponse(detail, caller))
}

// Update handles partial problem updates.
func (h *ProblemController) Update(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	// Unknown keys are rejected so a stray test_cases field cannot slip
	// past the derived-output path silently.
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	var req UpdateProblemRequest
	if err := decoder.Decode(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	input := service.UpdateProblemInput{
		Title:        req.Title,
		Description:  req.Description,
		DefaultCode:  req.DefaultCode,
		SolutionCode: req.SolutionCode,
		Difficulty:   req.Difficulty,
		TimeLimitMS:  req.TimeLimitMS,
		Headers:      req.Headers,
		Functions:    req.Functions,
		Tags:         req.Tags,
		AuthorID:     req.AuthorID,
	}
	if req.HeaderMode != nil {
		mode := model.ListMode(*req.HeaderMode)
		input.HeaderMode = &mode
	}
	if req.FunctionMode != nil {
		mode := model.ListMode(*req.FunctionMode)
		input.FunctionMode = &mode
	}

	problem, err := h.problemService.UpdateProblem(c.Request.Context(), caller, problemID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toProblemResponse(problem, caller))
}

// Delete handles problem deletion.
func (h *ProblemController) Delete(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.problemService.RemoveProblem(c.Request.Context(), caller, problemID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SubmitForReview handles the IN_PROGRESS to NEED_REVIEW transition.
func (h *ProblemController) SubmitForReview(c *gin.Context) {
	h.transition(c, h.problemService.SubmitForReview)
}

// Publish handles the NEED_REVIEW to PUBLISHED transition.
func (h *ProblemController) Publish(c *gin.Context) {
	h.transition(c, h.problemService.Publish)
}

// Archive handles the PUBLISHED to ARCHIVED transition.
func (h *ProblemController) Archive(c *gin.Context) {
	h.transition(c, h.problemService.Archive)
}

// Reopen handles the REJECTED to IN_PROGRESS transition.
func (h *ProblemController) Reopen(c *gin.Context) {
	h.transition(c, h.problemService.Reopen)
}

// Reject handles the NEED_REVIEW to REJECTED transition. The reviewer's
// message is mandatory.
func (h *ProblemController) Reject(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RejectProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Rejection message is required")
		return
	}
	if err := h.problemService.Reject(c.Request.Context(), caller, problemID, req.Message); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *ProblemController) transition(c *gin.Context, apply func(ctx context.Context, caller access.Caller, problemID int64) error) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := apply(c.Request.Context(), caller, problemID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
