package controller

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"courseoj/internal/catalog/service"
	"courseoj/internal/common/http/middleware"
	"courseoj/pkg/utils/response"
)

// SearchController handles catalog search endpoints.
type SearchController struct {
	searchService *service.SearchService
}

// NewSearchController creates a new SearchController.
func NewSearchController(searchService *service.SearchService) *SearchController {
	return &SearchController{searchService: searchService}
}

// Search handles catalog queries for both surfaces.
func (h *SearchController) Search(c *gin.Context) {
	caller, ok := middleware.CurrentCaller(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	input := service.SearchInput{
		SearchText:       c.Query("search_text"),
		MinDifficulty:    parseFloatQuery(c, "min_difficulty"),
		MaxDifficulty:    parseFloatQuery(c, "max_difficulty"),
		Status:           c.Query("status"),
		IDReverse:        c.Query("id_reverse") == "true",
		DifficultySortBy: c.Query("difficulty_sort_by"),
		StaffView:        c.Query("staff_view") == "true",
		Page:             parseIntQuery(c, "page"),
		Limit:            parseIntQuery(c, "limit"),
	}
	if tags := c.Query("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	result, err := h.searchService.Search(c.Request.Context(), caller, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SearchItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, SearchItemResponse{
			ID:         item.ID,
			Title:      item.Title,
			Difficulty: item.Difficulty,
			Tags:       item.Tags,
			AuthorName: item.AuthorName,
			DevStatus:  string(item.DevStatus),
			Progress:   string(item.Progress),
		})
	}
	response.SuccessWithPagination(c, items, result.Total, result.Page, result.Limit)
}

// SearchItemResponse is one search hit. DevStatus is set on the staff
// surface, Progress on the member surface.
type SearchItemResponse struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Difficulty float64  `json:"difficulty"`
	Tags       []string `json:"tags"`
	AuthorName string   `json:"author_name"`
	DevStatus  string   `json:"dev_status,omitempty"`
	Progress   string   `json:"progress,omitempty"`
}

func parseIntQuery(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}

func parseFloatQuery(c *gin.Context, name string) float64 {
	value, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		return 0
	}
	return value
}
