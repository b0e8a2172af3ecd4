package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/db"
)

const healthTimeout = 2 * time.Second

func HealthCheck(pinger db.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context(), pinger, healthTimeout); err != nil {
			log.Printf("Health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unavailable",
				"message":   "Database is unreachable",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"message":   "Staffing is running",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
