package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"faceattend/internal/capture"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/register", func(c *gin.Context) {
		name := c.PostForm("name")
		if _, err := c.FormFile("image"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No image provided"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Employee " + name + " registered successfully"})
	})
	r.POST("/api/mark-attendance", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No matching employee found"})
	})
	r.GET("/api/employees", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "count": 1, "employees": []gin.H{{"id": 7, "name": "Alice"}}})
	})
	r.GET("/api/attendance/:name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"employee_name":    c.Param("name"),
			"attendance_count": 1,
			"records":          []gin.H{{"timestamp": "2024-05-01T09:00:00"}},
		})
	})
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func photo(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("jpeg-bytes"), 0o600))
	return p
}

func TestRegister(t *testing.T) {
	srv := fakeService(t)
	out, err := run(t, "--server", srv.URL, "register", "--name", "Alice", "--image", photo(t, "alice.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "Success: Employee Alice registered successfully\n", out)
}

func TestRegister_BlankName(t *testing.T) {
	srv := fakeService(t)
	out, err := run(t, "--server", srv.URL, "register", "--name", "  ", "--image", photo(t, "alice.jpg"))
	assert.ErrorIs(t, err, errNotAccepted)
	assert.Contains(t, out, capture.MsgNameRequired)
}

func TestCheckIn_NoMatch(t *testing.T) {
	srv := fakeService(t)
	out, err := run(t, "--server", srv.URL, "checkin", "--image", photo(t, "cam.jpg"))
	assert.ErrorIs(t, err, errNotAccepted)
	assert.Equal(t, "Failed: No matching employee found\n", out)
}

func TestCheckIn_Unreachable(t *testing.T) {
	srv := fakeService(t)
	url := srv.URL
	srv.Close()

	out, err := run(t, "--server", url, "--json", "checkin", "--image", photo(t, "cam.jpg"))
	assert.ErrorIs(t, err, errNotAccepted)
	assert.Contains(t, out, `"kind": "connectivity_error"`)
	assert.Contains(t, out, capture.MsgCheckInConnection)
}

func TestSubmit_NeedsImage(t *testing.T) {
	_, err := run(t, "checkin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--image")
}

func TestEmployeesAndHistory(t *testing.T) {
	srv := fakeService(t)

	out, err := run(t, "--server", srv.URL, "employees")
	require.NoError(t, err)
	assert.Equal(t, "7\tAlice\n1 employee(s)\n", out)

	out, err = run(t, "--server", srv.URL, "history", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice: 1 record(s)\n2024-05-01T09:00:00\n", out)
}

func TestHealth(t *testing.T) {
	srv := fakeService(t)
	out, err := run(t, "--server", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "ok ")

	srv.Close()
	_, err = run(t, "--server", srv.URL, "health")
	assert.Error(t, err)
}

func TestConfigWarningsPrinted(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	srv := fakeService(t)

	out, err := run(t, "--server", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `warning: REQUEST_TIMEOUT="soon"`)
}
