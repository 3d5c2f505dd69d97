// Package cli is the terminal client for the scraper's HTTP API.
//
// It only speaks HTTP to a running server; it never opens the database or
// calls GitHub itself. That keeps exactly one process in charge of the cache.
//
//	ghscraper get-user-projects octocat
//	ghscraper get-recent-users 10
//	ghscraper --server http://scraper:8080 get-most-starred-projects
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sakif/github-scraper/internal/model"
)

const (
	DefaultServer = "http://localhost:8080"
	defaultLimit  = 5
)

// errorBody mirrors handler.ErrorResponse. Redeclared so the client does not
// import server-side packages.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewApp builds the command tree. out receives the listings, errOut every
// error and usage message, so piping out never captures a failure. Tests
// pass buffers for both.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "ghscraper",
		Usage:     "query the GitHub project cache",
		Writer:    out,
		ErrWriter: errOut,
		// By default urfave/cli calls os.Exit on an ExitCoder. Leaving the
		// exit to main keeps Run testable.
		ExitErrHandler: func(*cli.Context, error) {},
		// The default handler prints "Incorrect Usage" to Writer.
		OnUsageError: func(c *cli.Context, err error, _ bool) error {
			fmt.Fprintf(c.App.ErrWriter, "Incorrect usage: %v\n", err)
			return cli.Exit("", 2)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   DefaultServer,
				Usage:   "base URL of the scraper API",
				EnvVars: []string{"GHSCRAPER_SERVER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "how long to wait for the server",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get-user-projects",
				Usage:     "show a GitHub user's projects (fetched from GitHub on first use)",
				ArgsUsage: "<username>",
				Action:    getUserProjects,
			},
			{
				Name:      "get-recent-users",
				Usage:     "show the N most recently cached users",
				ArgsUsage: "[n=5]",
				Action:    getRecentUsers,
			},
			{
				Name:      "get-most-starred-projects",
				Usage:     "show the N most starred cached projects",
				ArgsUsage: "[n=5]",
				Action:    getMostStarredProjects,
			},
		},
	}
}

func getUserProjects(c *cli.Context) error {
	username := strings.TrimSpace(c.Args().First())
	if username == "" {
		return cli.Exit("Error: a username is required", 2)
	}

	var projects []model.ProjectView
	status, apiErr, err := get(c, "/users/"+url.PathEscape(username)+"/projects", &projects)
	if err != nil {
		return err
	}
	out := c.App.Writer

	switch {
	case status == http.StatusOK && len(projects) == 0:
		fmt.Fprintf(out, "No projects found for user '%s'.\n", username)
	case status == http.StatusOK:
		fmt.Fprintf(out, "Projects for user '%s':\n", username)
		for _, p := range projects {
			desc := "(no description)"
			if p.Description != nil {
				desc = *p.Description
			}
			fmt.Fprintf(out, "- %s: %s\n", p.Name, desc)
			fmt.Fprintf(out, "  Stars: %d, Forks: %d\n\n", p.Stars, p.Forks)
		}
	case status == http.StatusNotFound:
		fmt.Fprintf(c.App.ErrWriter, "User '%s' not found.\n", username)
		return cli.Exit("", 1)
	default:
		return reportError(c.App.ErrWriter, apiErr)
	}
	return nil
}

func getRecentUsers(c *cli.Context) error {
	n, err := limitArg(c)
	if err != nil {
		return err
	}

	var users []model.UserView
	status, apiErr, err := get(c, fmt.Sprintf("/users/recent/%d", n), &users)
	if err != nil {
		return err
	}
	out := c.App.Writer

	if status != http.StatusOK {
		return reportError(c.App.ErrWriter, apiErr)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found in the database.")
		return nil
	}
	fmt.Fprintf(out, "Most recent %d users:\n", n)
	for _, u := range users {
		fmt.Fprintf(out, "- %s (ID: %d)\n", u.Username, u.ID)
	}
	return nil
}

func getMostStarredProjects(c *cli.Context) error {
	n, err := limitArg(c)
	if err != nil {
		return err
	}

	var projects []model.ProjectView
	status, apiErr, err := get(c, fmt.Sprintf("/projects/most-starred/%d", n), &projects)
	if err != nil {
		return err
	}
	out := c.App.Writer

	if status != http.StatusOK {
		return reportError(c.App.ErrWriter, apiErr)
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found in the database.")
		return nil
	}
	fmt.Fprintf(out, "Top %d most starred projects:\n", n)
	for _, p := range projects {
		fmt.Fprintf(out, "- %s by User ID %d\n", p.Name, p.UserID)
		fmt.Fprintf(out, "  Stars: %d, Forks: %d\n\n", p.Stars, p.Forks)
	}
	return nil
}

// limitArg reads the optional positional n. Range checks are the server's job.
func limitArg(c *cli.Context) (int, error) {
	raw := c.Args().First()
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("Error: n must be an integer, got %q", raw), 2)
	}
	return n, nil
}

// get fetches path from the server. On 2xx the body is decoded into out; on
// any other status the standard error body is decoded and returned instead.
func get(c *cli.Context, path string, out any) (int, *errorBody, error) {
	base := strings.TrimRight(c.String("server"), "/")

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return 0, nil, cli.Exit(fmt.Sprintf("Error: invalid server URL %q: %v", base, err), 2)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, cli.Exit(fmt.Sprintf("Error: could not reach server at %s: %v", base, err), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, nil, cli.Exit(fmt.Sprintf("Error: unreadable response: %v", err), 1)
		}
		return resp.StatusCode, nil, nil
	}

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		body = errorBody{Error: "unknown", Message: fmt.Sprintf("server returned %s", resp.Status)}
	}
	return resp.StatusCode, &body, nil
}

func reportError(out io.Writer, apiErr *errorBody) error {
	msg := "Unknown error"
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	fmt.Fprintf(out, "Error: %s\n", msg)
	return cli.Exit("", 1)
}

// ExitCode extracts the process exit code from an error returned by
// App.Run. nil means 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
