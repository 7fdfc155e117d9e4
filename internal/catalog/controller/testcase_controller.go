package controller

import (
	"github.com/gin-gonic/gin"

	"courseoj/internal/catalog/service"
	"courseoj/pkg/utils/response"
)

// TestCaseController handles test-case authoring endpoints. All of them
// go through the verifier so stored expected outputs always come from the
// problem's solution code.
type TestCaseController struct {
	verifier *service.VerifierService
}

// NewTestCaseController creates a new TestCaseController.
func NewTestCaseController(verifier *service.VerifierService) *TestCaseController {
	return &TestCaseController{verifier: verifier}
}

// Create adds a test case to a problem.
func (h *TestCaseController) Create(c *gin.Context) {
	problemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateTestCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	testCase, err := h.verifier.CreateTestCase(c.Request.Context(), problemID, req.Input, req.IsHidden)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTestCaseResponse(testCase))
}

// Update changes a test case's input and/or hidden flag.
func (h *TestCaseController) Update(c *gin.Context) {
	testCaseID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateTestCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	testCase, err := h.verifier.UpdateTestCase(c.Request.Context(), testCaseID, req.Input, req.IsHidden)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTestCaseResponse(testCase))
}

// Delete removes a test case.
func (h *TestCaseController) Delete(c *gin.Context) {
	testCaseID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.verifier.RemoveTestCase(c.Request.Context(), testCaseID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UpdateTestCaseRequest defines the partial test-case update payload.
type UpdateTestCaseRequest struct {
	Input    *string `json:"input"`
	IsHidden *bool   `json:"is_hidden"`
}
