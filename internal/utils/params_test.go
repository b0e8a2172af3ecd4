package utils

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(t *testing.T, target string) *gin.Context {
	t.Helper()

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodGet, target, nil)

	return ctx
}

func TestGetPage(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "?page=3&page_size=50", 3, 50},
		{"garbage falls back", "?page=abc&page_size=-4", 1, 20},
		{"size capped", "?page_size=1000", 1, MaxPageSize},
		{"page capped", "?page=" + strconv.Itoa(math32Overflow), MaxPage, 20},
		{"page beyond int range", "?page=99999999999999999999999", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size := GetPage(testContext(t, "/items"+tt.query), 20)

			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

const math32Overflow = 1 << 40

func TestGetPageOffsetStaysInRange(t *testing.T) {
	page, size := GetPage(testContext(t, "/items?page="+strconv.Itoa(math32Overflow)+"&page_size=100"), 20)

	offset := (page - 1) * size
	require.GreaterOrEqual(t, offset, 0)
	assert.LessOrEqual(t, offset, 1<<31-1)
}

func TestGetProjectMemberID(t *testing.T) {
	ctx := testContext(t, "/")
	ctx.Params = gin.Params{{Key: "project_id", Value: "4"}, {Key: "member_id", Value: "9"}}

	projectID, memberID, err := GetProjectMemberID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(4), projectID)
	assert.Equal(t, uint(9), memberID)

	ctx.Params = gin.Params{{Key: "project_id", Value: "0"}}
	_, _, err = GetProjectMemberID(ctx)
	assert.EqualError(t, err, "Invalid Project ID")

	ctx.Params = gin.Params{{Key: "project_id", Value: "4"}}
	_, _, err = GetProjectMemberID(ctx)
	assert.EqualError(t, err, "Member ID not found")
}
