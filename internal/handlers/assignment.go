package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/internal/assignments"
	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/services"
	"github.com/monocle-dev/staffing/internal/utils"
)

// Pivot columns accepted on attach and sync. deleted_at is only writable
// through an explicit pivot update.
var writableColumns = []string{attrs.AssignedBy, attrs.AssignedAt, attrs.Role}

type SyncRequest struct {
	Members   map[string]map[string]any `json:"members" binding:"required"`
	Detaching *bool                     `json:"detaching"`
}

type AssignmentHandler struct {
	Service *services.AssignmentService
}

func NewAssignmentHandler(service *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{Service: service}
}

func respondError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, assignments.ErrNotAttached):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, assignments.ErrAlreadyAttached):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attrs.ErrTypeMismatch), errors.Is(err, attrs.ErrUnknownColumn):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("%s: %v", fallback, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func listOptions(ctx *gin.Context) (assignments.ListOptions, bool) {
	var opts assignments.ListOptions

	if raw := ctx.Query("with_trashed"); raw != "" {
		withTrashed, err := strconv.ParseBool(raw)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "with_trashed must be a boolean"})
			return opts, false
		}

		opts.WithTrashed = withTrashed
	}

	return opts, true
}

func (h *AssignmentHandler) ListProjectMembers(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, ok := listOptions(ctx)

	if !ok {
		return
	}

	members, err := h.Service.Members(ctx.Request.Context(), projectID, opts)

	if err != nil {
		respondError(ctx, err, "Failed to retrieve project members")
		return
	}

	ctx.JSON(http.StatusOK, members)
}

func (h *AssignmentHandler) ListMemberProjects(ctx *gin.Context) {
	memberID, err := utils.GetMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, ok := listOptions(ctx)

	if !ok {
		return
	}

	projects, err := h.Service.Projects(ctx.Request.Context(), memberID, opts)

	if err != nil {
		respondError(ctx, err, "Failed to retrieve member projects")
		return
	}

	ctx.JSON(http.StatusOK, projects)
}

func (h *AssignmentHandler) AttachMember(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body map[string]any

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	memberID, ok, err := attrs.Uint(body, "member_id")

	if err != nil {
		respondError(ctx, err, "Invalid request")
		return
	}

	if !ok || memberID == 0 {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "member_id is required"})
		return
	}

	delete(body, "member_id")

	a, err := attrs.Pivot(body, writableColumns...)

	if err != nil {
		respondError(ctx, err, "Invalid request")
		return
	}

	row, err := h.Service.Attach(ctx.Request.Context(), utils.GetActorName(ctx), projectID, memberID, a)

	if err != nil {
		respondError(ctx, err, "Failed to assign member")
		return
	}

	ctx.JSON(http.StatusCreated, h.Service.Repository().View(*row))
}

func (h *AssignmentHandler) SyncMembers(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body SyncRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	targets := make(map[uint]attrs.Attributes, len(body.Members))

	for key, values := range body.Members {
		memberID, err := strconv.ParseUint(key, 10, 32)

		if err != nil || memberID == 0 {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid member ID: " + key})
			return
		}

		a, err := attrs.Pivot(values, writableColumns...)

		if err != nil {
			respondError(ctx, err, "Invalid request")
			return
		}

		targets[uint(memberID)] = a
	}

	detaching := body.Detaching == nil || *body.Detaching

	changes, err := h.Service.Sync(ctx.Request.Context(), utils.GetActorName(ctx), projectID, targets, detaching)

	if err != nil {
		respondError(ctx, err, "Failed to sync members")
		return
	}

	ctx.JSON(http.StatusOK, changes)
}

func (h *AssignmentHandler) GetProjectMember(ctx *gin.Context) {
	projectID, memberID, err := utils.GetProjectMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pivot, err := h.Service.Find(ctx.Request.Context(), projectID, memberID)

	if err != nil {
		respondError(ctx, err, "Failed to retrieve assignment")
		return
	}

	ctx.JSON(http.StatusOK, pivot)
}

func (h *AssignmentHandler) UpdateProjectMember(ctx *gin.Context) {
	projectID, memberID, err := utils.GetProjectMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body map[string]any

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	a, err := attrs.Pivot(body, attrs.AssignedBy, attrs.AssignedAt, attrs.Role, attrs.DeletedAt)

	if err != nil {
		respondError(ctx, err, "Invalid request")
		return
	}

	row, err := h.Service.Update(ctx.Request.Context(), utils.GetActorName(ctx), projectID, memberID, a)

	if err != nil {
		respondError(ctx, err, "Failed to update assignment")
		return
	}

	ctx.JSON(http.StatusOK, h.Service.Repository().View(*row))
}

// DetachMember soft-deletes the pair. Detaching a pair that is already
// trashed succeeds; a pair that was never stored is a 404.
func (h *AssignmentHandler) DetachMember(ctx *gin.Context) {
	projectID, memberID, err := utils.GetProjectMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detached, err := h.Service.Detach(ctx.Request.Context(), utils.GetActorName(ctx), projectID, memberID)

	if err != nil {
		respondError(ctx, err, "Failed to unassign member")
		return
	}

	if len(detached) == 0 {
		if _, err := h.Service.Find(ctx.Request.Context(), projectID, memberID); err != nil {
			respondError(ctx, err, "Failed to unassign member")
			return
		}
	}

	ctx.Status(http.StatusNoContent)
}

func (h *AssignmentHandler) RestoreMember(ctx *gin.Context) {
	projectID, memberID, err := utils.GetProjectMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.Service.Restore(ctx.Request.Context(), utils.GetActorName(ctx), projectID, memberID)

	if err != nil {
		respondError(ctx, err, "Failed to restore assignment")
		return
	}

	ctx.JSON(http.StatusOK, h.Service.Repository().View(*row))
}
