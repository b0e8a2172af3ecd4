package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/internal/middleware"
	"github.com/monocle-dev/staffing/internal/types"
)

func GetCurrentActor(ctx *gin.Context) (middleware.Actor, error) {
	actor, exists := ctx.Get(types.ContextActorKey)

	if !exists {
		return middleware.Actor{}, fmt.Errorf("User not authenticated")
	}

	authenticated, ok := actor.(middleware.Actor)

	if !ok {
		return middleware.Actor{}, fmt.Errorf("Invalid actor type in context")
	}

	return authenticated, nil
}

// GetActorName returns the name recorded as assigned_by, or "" for anonymous
// requests.
func GetActorName(ctx *gin.Context) string {
	actor, err := GetCurrentActor(ctx)

	if err != nil {
		return ""
	}

	return actor.DisplayName()
}
