package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: DefaultSize}},
		{"?page=3&size=5", Query{Page: 3, Size: 5}},
		{"?page=-1&size=0", Query{Page: 1, Size: DefaultSize}},
		{"?size=1000", Query{Page: 1, Size: MaxSize}},
		{"?page=x", Query{Page: 1, Size: DefaultSize}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/ideas"+tc.query, nil)
			assert.Equal(t, tc.want, FromContext(c))
		})
	}
}
