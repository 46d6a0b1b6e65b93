// Package directory reads employees and projects from their owning services
// and manages project capacity reservations over HTTP.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/md-rashed-zaman/staffsync/libs/auth"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/model"
)

type Employee struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
	Version  int64  `json:"version"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Allocated int    `json:"allocated"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}

const ProjectCompleted = "completed"

type client struct {
	base string
	http *http.Client
}

func newClient(baseURL string, hc *http.Client) client {
	return client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// do sends the request and returns the response for 2xx and 4xx statuses.
// Transport failures and 5xx are reported as model.ErrUpstream.
func (c client) do(ctx context.Context, method string, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", model.ErrUpstream, method, path, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		defer resp.Body.Close()
		body := httpx.ReadError(resp)
		return nil, fmt.Errorf("%w: %s %s: %d %s", model.ErrUpstream, method, path, resp.StatusCode, body.Message)
	}
	return resp, nil
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", model.ErrUpstream, err)
	}
	return nil
}

// unexpected turns an unhandled 4xx into an upstream error and closes the body.
func unexpected(resp *http.Response) error {
	defer resp.Body.Close()
	body := httpx.ReadError(resp)
	return fmt.Errorf("%w: status %d %s: %s", model.ErrUpstream, resp.StatusCode, body.Code, body.Message)
}

type EmployeeClient struct {
	client
}

func NewEmployeeClient(baseURL string, hc *http.Client) *EmployeeClient {
	return &EmployeeClient{client: newClient(baseURL, hc)}
}

func (c *EmployeeClient) GetEmployee(ctx context.Context, id string) (Employee, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/employees/"+url.PathEscape(id))
	if err != nil {
		return Employee{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var e Employee
		err := decode(resp, &e)
		return e, err
	case http.StatusNotFound:
		resp.Body.Close()
		return Employee{}, model.ErrEmployeeNotFound
	default:
		return Employee{}, unexpected(resp)
	}
}

type ProjectClient struct {
	client
}

func NewProjectClient(baseURL string, hc *http.Client) *ProjectClient {
	return &ProjectClient{client: newClient(baseURL, hc)}
}

func (c *ProjectClient) GetProject(ctx context.Context, id string) (Project, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(id))
	if err != nil {
		return Project{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var p Project
		err := decode(resp, &p)
		return p, err
	case http.StatusNotFound:
		resp.Body.Close()
		return Project{}, model.ErrProjectNotFound
	default:
		return Project{}, unexpected(resp)
	}
}

// Reserve takes one capacity slot for assignmentID. It is idempotent on the
// project side, so retrying after a lost response is safe.
func (c *ProjectClient) Reserve(ctx context.Context, projectID, assignmentID string) error {
	return c.reservation(ctx, http.MethodPut, projectID, assignmentID)
}

// Release frees the slot held by assignmentID, if any.
func (c *ProjectClient) Release(ctx context.Context, projectID, assignmentID string) error {
	return c.reservation(ctx, http.MethodDelete, projectID, assignmentID)
}

func (c *ProjectClient) reservation(ctx context.Context, method, projectID, assignmentID string) error {
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/reservations/" + url.PathEscape(assignmentID)
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusBadRequest {
		resp.Body.Close()
		return nil
	}
	defer resp.Body.Close()
	body := httpx.ReadError(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ErrProjectNotFound
	case body.Code == httpx.CodeCapacityExceeded:
		return model.ErrCapacityExceeded
	case body.Code == httpx.CodeProjectClosed:
		return model.ErrProjectClosed
	default:
		return fmt.Errorf("%w: status %d %s: %s", model.ErrUpstream, resp.StatusCode, body.Code, body.Message)
	}
}
