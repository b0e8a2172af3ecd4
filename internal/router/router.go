package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/monocle-dev/staffing/internal/handlers"
	"github.com/monocle-dev/staffing/internal/middleware"
	"github.com/monocle-dev/staffing/internal/services"
)

type Dependencies struct {
	Config      *config.Config
	Pinger      db.Pinger
	Assignments *services.AssignmentService
	Hub         *handlers.Hub
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Config.Origins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	assignments := handlers.NewAssignmentHandler(deps.Assignments)

	api := r.Group("/api", middleware.RateLimit(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst))
	{
		api.GET("/health", handlers.HealthCheck(deps.Pinger))
		api.GET("/ws/:project_id", deps.Hub.WebSocket)

		projects := api.Group("/projects")
		{
			projects.GET("", handlers.ListProjects)
			projects.GET("/:project_id", handlers.GetProject)
			projects.GET("/:project_id/members", assignments.ListProjectMembers)
			projects.GET("/:project_id/members/:member_id", assignments.GetProjectMember)

			authed := projects.Group("", middleware.AuthMiddleware())
			authed.POST("", handlers.CreateProject)
			authed.PATCH("/:project_id", handlers.UpdateProject)
			authed.DELETE("/:project_id", handlers.DeleteProject)

			// Assignment endpoints
			authed.POST("/:project_id/members", assignments.AttachMember)
			authed.PUT("/:project_id/members", assignments.SyncMembers)
			authed.PATCH("/:project_id/members/:member_id", assignments.UpdateProjectMember)
			authed.DELETE("/:project_id/members/:member_id", assignments.DetachMember)
			authed.POST("/:project_id/members/:member_id/restore", assignments.RestoreMember)
		}

		members := api.Group("/members")
		{
			members.GET("", handlers.ListMembers)
			members.GET("/:member_id", handlers.GetMember)
			members.GET("/:member_id/projects", assignments.ListMemberProjects)

			authed := members.Group("", middleware.AuthMiddleware())
			authed.POST("", handlers.CreateMember)
			authed.PATCH("/:member_id", handlers.UpdateMember)
			authed.DELETE("/:member_id", handlers.DeleteMember)
		}
	}

	return r
}
