package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/internal/types"
	"github.com/monocle-dev/staffing/internal/utils"
	"gorm.io/gorm"
)

type PageResponse[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// paginate runs query for the page requested in the query string, ordered by
// id.
func paginate[T any](ctx *gin.Context, query *gorm.DB) (PageResponse[T], error) {
	page, size := utils.GetPage(ctx, types.DefaultPageSize)

	response := PageResponse[T]{
		Items:    []T{},
		Page:     page,
		PageSize: size,
	}

	var model T
	if err := query.Model(&model).Count(&response.Total).Error; err != nil {
		return response, err
	}

	err := query.
		Order("id").
		Offset((page - 1) * size).
		Limit(size).
		Find(&response.Items).
		Error

	return response, err
}
