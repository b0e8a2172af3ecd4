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

type MemberRequest struct {
	Name string `json:"name" binding:"required"`
}

func CreateMember(ctx *gin.Context) {
	var body MemberRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	member := models.Member{Name: body.Name}

	if err := db.DB.WithContext(ctx.Request.Context()).Create(&member).Error; err != nil {
		log.Printf("Failed to create member: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create member"})
		return
	}

	ctx.JSON(http.StatusCreated, member)
}

func ListMembers(ctx *gin.Context) {
	response, err := paginate[models.Member](ctx, db.DB.WithContext(ctx.Request.Context()))

	if err != nil {
		log.Printf("Failed to list members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

func findMember(ctx *gin.Context) (models.Member, bool) {
	var member models.Member

	memberID, err := utils.GetMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return member, false
	}

	if err := db.DB.WithContext(ctx.Request.Context()).First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve member"})
		}
		return member, false
	}

	return member, true
}

func GetMember(ctx *gin.Context) {
	member, ok := findMember(ctx)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, member)
}

func UpdateMember(ctx *gin.Context) {
	var body MemberRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	member, ok := findMember(ctx)

	if !ok {
		return
	}

	member.Name = body.Name

	if err := db.DB.WithContext(ctx.Request.Context()).Save(&member).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	ctx.JSON(http.StatusOK, member)
}

func DeleteMember(ctx *gin.Context) {
	member, ok := findMember(ctx)

	if !ok {
		return
	}

	if err := db.DB.WithContext(ctx.Request.Context()).Delete(&member).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete member"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
