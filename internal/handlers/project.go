package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/models"
	"github.com/monocle-dev/staffing/internal/utils"
	"gorm.io/gorm"
)

type ProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

func CreateProject(ctx *gin.Context) {
	var body ProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project := models.Project{Name: body.Name}

	if err := db.DB.WithContext(ctx.Request.Context()).Create(&project).Error; err != nil {
		log.Printf("Failed to create project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	ctx.JSON(http.StatusCreated, project)
}

func ListProjects(ctx *gin.Context) {
	response, err := paginate[models.Project](ctx, db.DB.WithContext(ctx.Request.Context()))

	if err != nil {
		log.Printf("Failed to list projects: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

func findProject(ctx *gin.Context) (models.Project, bool) {
	var project models.Project

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return project, false
	}

	if err := db.DB.WithContext(ctx.Request.Context()).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return project, false
	}

	return project, true
}

func GetProject(ctx *gin.Context) {
	project, ok := findProject(ctx)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, project)
}

func UpdateProject(ctx *gin.Context) {
	var body ProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, ok := findProject(ctx)

	if !ok {
		return
	}

	project.Name = body.Name

	if err := db.DB.WithContext(ctx.Request.Context()).Save(&project).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	ctx.JSON(http.StatusOK, project)
}

// DeleteProject removes the project; its assignment rows go with it.
func DeleteProject(ctx *gin.Context) {
	project, ok := findProject(ctx)

	if !ok {
		return
	}

	if err := db.DB.WithContext(ctx.Request.Context()).Delete(&project).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
