package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

func getID(ctx *gin.Context, param string, label string) (uint, error) {
	raw := ctx.Param(param)

	if raw == "" {
		return 0, fmt.Errorf("%s ID not found", label)
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil || id == 0 {
		return 0, fmt.Errorf("Invalid %s ID", label)
	}

	return uint(id), nil
}

func GetProjectID(ctx *gin.Context) (uint, error) {
	return getID(ctx, "project_id", "Project")
}

func GetMemberID(ctx *gin.Context) (uint, error) {
	return getID(ctx, "member_id", "Member")
}

func GetProjectMemberID(ctx *gin.Context) (uint, uint, error) {
	projectID, err := GetProjectID(ctx)

	if err != nil {
		return 0, 0, err
	}

	memberID, err := GetMemberID(ctx)

	if err != nil {
		return 0, 0, err
	}

	return projectID, memberID, nil
}

const (
	MaxPageSize = 100
	// MaxPage keeps (page-1)*size within an int32 offset.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// GetPage reads page and page_size query parameters, falling back to page 1
// and the given size. Sizes are capped at MaxPageSize and pages at MaxPage.
func GetPage(ctx *gin.Context, defaultSize int) (int, int) {
	page, err := strconv.Atoi(ctx.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	size, err := strconv.Atoi(ctx.Query("page_size"))
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size
}
