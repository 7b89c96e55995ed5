package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestParseErrorCode(t *testing.T) {
	code, msg := parseErrorCode(fmt.Errorf("40005:project name already exists"))
	assert.Equal(t, 40005, code)
	assert.Equal(t, "project name already exists", msg)

	code, msg = parseErrorCode(errors.New("dial tcp: refused"))
	assert.Equal(t, 50001, code)
	assert.Equal(t, "dial tcp: refused", msg)
}

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("40001:bad"), http.StatusBadRequest},
		{fmt.Errorf("40301:no"), http.StatusForbidden},
		{fmt.Errorf("40401:missing"), http.StatusNotFound},
		{fmt.Errorf("41301:too large"), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("50201:claude request failed"), http.StatusBadGateway},
		{fmt.Errorf("50301:queue full"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tc.err, "not found")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}

func TestParsePage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=0&page_size=500", nil)
	page, size := parsePage(c)
	assert.Equal(t, 1, page)
	assert.Equal(t, 100, size)
}
