package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the app against a fake API server and returns what it wrote
// to stdout and stderr, and its exit code.
func run(t *testing.T, api http.HandlerFunc, args ...string) (string, string, int) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	argv := append([]string{"ghscraper", "--server", srv.URL}, args...)
	err := app.RunContext(context.Background(), argv)
	return out.String(), errOut.String(), ExitCode(err)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestGetUserProjects(t *testing.T) {
	var gotPath string
	out, _, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		respond(http.StatusOK, `[
			{"id":1,"name":"Hello-World","description":"My first repository","stars":10,"forks":2,"user_id":1},
			{"id":2,"name":"Spoon-Knife","description":null,"stars":1,"forks":0,"user_id":1}
		]`)(w, r)
	}, "get-user-projects", "octocat")

	assert.Equal(t, 0, code)
	assert.Equal(t, "/users/octocat/projects", gotPath)
	assert.Equal(t, "Projects for user 'octocat':\n"+
		"- Hello-World: My first repository\n"+
		"  Stars: 10, Forks: 2\n\n"+
		"- Spoon-Knife: (no description)\n"+
		"  Stars: 1, Forks: 0\n\n", out)
}

func TestGetUserProjects_Empty(t *testing.T) {
	out, _, code := run(t, respond(http.StatusOK, `[]`), "get-user-projects", "empty-user")

	assert.Equal(t, 0, code)
	assert.Equal(t, "No projects found for user 'empty-user'.\n", out)
}

func TestGetUserProjects_NotFound(t *testing.T) {
	out, errOut, code := run(t, respond(http.StatusNotFound, `{"error":"not_found","message":"github user not found with id ghost"}`),
		"get-user-projects", "ghost")

	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Equal(t, "User 'ghost' not found.\n", errOut)
}

func TestGetUserProjects_ServerError(t *testing.T) {
	out, errOut, code := run(t, respond(http.StatusServiceUnavailable, `{"error":"remote_service_unavailable","message":"github rate limit exceeded"}`),
		"get-user-projects", "octocat")

	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Equal(t, "Error: github rate limit exceeded\n", errOut)
}

func TestGetUserProjects_NonJSONError(t *testing.T) {
	_, errOut, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}, "get-user-projects", "octocat")

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Error: server returned 502")
}

func TestGetUserProjects_MissingUsername(t *testing.T) {
	_, _, code := run(t, respond(http.StatusOK, `[]`), "get-user-projects")
	assert.Equal(t, 2, code)
}

func TestGetRecentUsers(t *testing.T) {
	var gotPath string
	out, _, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		respond(http.StatusOK, `[
			{"id":2,"username":"second","created_at":"2024-01-01T00:00:02Z"},
			{"id":1,"username":"first","created_at":"2024-01-01T00:00:01Z"}
		]`)(w, r)
	}, "get-recent-users", "2")

	assert.Equal(t, 0, code)
	assert.Equal(t, "/users/recent/2", gotPath)
	assert.Equal(t, "Most recent 2 users:\n- second (ID: 2)\n- first (ID: 1)\n", out)
}

func TestGetRecentUsers_DefaultsToFive(t *testing.T) {
	var gotPath string
	out, _, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		respond(http.StatusOK, `[]`)(w, r)
	}, "get-recent-users")

	assert.Equal(t, 0, code)
	assert.Equal(t, "/users/recent/5", gotPath)
	assert.Equal(t, "No users found in the database.\n", out)
}

func TestGetRecentUsers_ValidationError(t *testing.T) {
	out, errOut, code := run(t, respond(http.StatusUnprocessableEntity, `{"error":"validation_error","message":"n must be between 1 and 100"}`),
		"get-recent-users", "0")

	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Equal(t, "Error: n must be between 1 and 100\n", errOut)
}

func TestGetRecentUsers_NonIntegerN(t *testing.T) {
	called := false
	_, _, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "get-recent-users", "five")

	assert.Equal(t, 2, code)
	assert.False(t, called, "server must not be contacted")
}

func TestGetMostStarredProjects(t *testing.T) {
	out, _, code := run(t, respond(http.StatusOK, `[
		{"id":1,"name":"Hello-World","description":null,"stars":10,"forks":2,"user_id":1}
	]`), "get-most-starred-projects", "1")

	assert.Equal(t, 0, code)
	assert.Equal(t, "Top 1 most starred projects:\n- Hello-World by User ID 1\n  Stars: 10, Forks: 2\n\n", out)
}

func TestGetMostStarredProjects_Empty(t *testing.T) {
	out, _, code := run(t, respond(http.StatusOK, `[]`), "get-most-starred-projects")

	assert.Equal(t, 0, code)
	assert.Equal(t, "No projects found in the database.\n", out)
}

func TestUnknownFlagGoesToStderr(t *testing.T) {
	called := false
	out, errOut, code := run(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "--no-such-flag", "get-recent-users")

	assert.Equal(t, 2, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Incorrect usage")
	assert.False(t, called)
}

func TestServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).RunContext(context.Background(),
		[]string{"ghscraper", "--server", addr, "get-recent-users"})
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, err.Error(), "could not reach server")
}

func TestServerFlagFromEnv(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		respond(http.StatusOK, `[]`)(w, r)
	}))
	defer srv.Close()
	t.Setenv("GHSCRAPER_SERVER", srv.URL)

	var out bytes.Buffer
	err := NewApp(&out, io.Discard).RunContext(context.Background(), []string{"ghscraper", "get-recent-users"})
	require.NoError(t, err)
	assert.True(t, hit)
}
