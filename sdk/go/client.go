package raidsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiVersion = "v1"

// Client is a minimal taskraid HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		ProjectID:   projectID,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Project represents the API project model with its members.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"owner_id"`
	Status      string   `json:"status"`
	Members     []Member `json:"members"`
}

type Member struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	HP     int    `json:"hp"`
	MaxHP  int    `json:"max_hp"`
	Score  int    `json:"score"`
	Status string `json:"status"`
}

// Task represents the API task model (partial).
type Task struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Assignees []string   `json:"assignees"`
}

type Boss struct {
	ID     string `json:"id"`
	HP     int    `json:"hp"`
	MaxHP  int    `json:"max_hp"`
	Phase  int    `json:"phase"`
	Status string `json:"status"`
	Type   *struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"type,omitempty"`
}

type Attack struct {
	Damage     int  `json:"damage"`
	Score      int  `json:"score"`
	Boss       Boss `json:"boss"`
	BossKilled bool `json:"boss_killed"`
	NextPhase  bool `json:"next_phase"`
}

// Completion is a finished task and the attack it fueled, if any.
type Completion struct {
	Task   Task    `json:"task"`
	Attack *Attack `json:"attack,omitempty"`
}

type Hit struct {
	MemberID string `json:"member_id"`
	Damage   int    `json:"damage"`
	HP       int    `json:"hp"`
	Killed   bool   `json:"killed"`
}

type BossAttack struct {
	TaskID string `json:"task_id"`
	Hits   []Hit  `json:"hits"`
}

type Heal struct {
	Amount int `json:"amount"`
	HP     int `json:"hp"`
}

// Status is the boss and member snapshot of a project.
type Status struct {
	Boss    *Boss            `json:"boss,omitempty"`
	Members []map[string]any `json:"members"`
}

type Review struct {
	Report struct {
		ID        string `json:"id"`
		Sentiment int    `json:"sentiment"`
	} `json:"report"`
	Source  string         `json:"sentiment_source"`
	Support map[string]any `json:"support"`
}

// Event represents a log entry.
type Event struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	ActorType string         `json:"actor_type"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project owned by the token's user and points the client at it.
func (c *Client) CreateProject(ctx context.Context, id, name, description string) (Project, error) {
	body := map[string]any{"id": id, "name": name, "description": description}
	var resp Project
	if err := c.do(ctx, http.MethodPost, apiPath("projects"), body, &resp); err != nil {
		return resp, err
	}
	c.ProjectID = resp.ID
	return resp, nil
}

func (c *Client) Project(ctx context.Context) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, c.projectPath(""), nil, &resp)
	return resp, err
}

// UpdateProject changes the name and/or description; empty values are left as they are.
func (c *Client) UpdateProject(ctx context.Context, name, description string) (Project, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}
	var resp Project
	err := c.do(ctx, http.MethodPatch, c.projectPath(""), body, &resp)
	return resp, err
}

func (c *Client) Join(ctx context.Context) (Member, error) {
	var resp Member
	err := c.do(ctx, http.MethodPost, c.projectPath("members"), nil, &resp)
	return resp, err
}

// CreateTask creates a task. A nil deadline leaves the task open-ended.
func (c *Client) CreateTask(ctx context.Context, title string, priority int, deadline *time.Time) (Task, error) {
	body := map[string]any{"title": title, "priority": priority}
	if deadline != nil {
		body["deadline"] = deadline.UTC()
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), body, &resp)
	return resp, err
}

func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, c.projectPath("tasks"), nil, &resp)
	return resp, err
}

func (c *Client) CompleteTask(ctx context.Context, taskID string) (Completion, error) {
	var resp Completion
	err := c.do(ctx, http.MethodPost, c.taskPath(taskID, "complete"), nil, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, c.taskPath(taskID, ""), nil, nil)
}

func (c *Client) Assign(ctx context.Context, taskID, memberID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.taskPath(taskID, "assignees"), map[string]any{"member_id": memberID}, &resp)
	return resp, err
}

func (c *Client) Unassign(ctx context.Context, taskID, memberID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodDelete, c.taskPath(taskID, "assignees/"+url.PathEscape(memberID)), nil, &resp)
	return resp, err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, c.projectPath("status"), nil, &resp)
	return resp, err
}

func (c *Client) SetupBoss(ctx context.Context) (Boss, error) {
	var resp Boss
	err := c.do(ctx, http.MethodPost, c.projectPath("boss"), nil, &resp)
	return resp, err
}

func (c *Client) SetupSpecialBoss(ctx context.Context) (Boss, error) {
	var resp Boss
	err := c.do(ctx, http.MethodPost, c.projectPath("boss/special"), nil, &resp)
	return resp, err
}

func (c *Client) BossAttack(ctx context.Context, taskID string) (BossAttack, error) {
	var resp BossAttack
	err := c.do(ctx, http.MethodPost, c.projectPath("attack"), map[string]any{"task_id": taskID}, &resp)
	return resp, err
}

func (c *Client) Heal(ctx context.Context, memberID string, value float64) (Heal, error) {
	var resp Heal
	err := c.do(ctx, http.MethodPost, c.projectPath("heal"), map[string]any{"member_id": memberID, "heal_value": value}, &resp)
	return resp, err
}

// Revive revives memberID, or the caller when memberID is empty.
func (c *Client) Revive(ctx context.Context, memberID string) (Member, error) {
	var resp Member
	err := c.do(ctx, http.MethodPost, c.projectPath("revive"), map[string]any{"member_id": memberID}, &resp)
	return resp, err
}

func (c *Client) Review(ctx context.Context, taskID, description string) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, c.taskPath(taskID, "reviews"), map[string]any{"description": description}, &resp)
	return resp, err
}

func (c *Client) UseItem(ctx context.Context, ownedItemID string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPost, c.projectPath("items/use"), map[string]any{"owned_item_id": ownedItemID}, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int, types ...string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if len(types) > 0 {
		q.Set("type", strings.Join(types, ","))
	}
	endpoint := c.projectPath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// apiPath prefixes p with the API version the server mounts under.
func apiPath(p string) string {
	return apiVersion + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) projectPath(p string) string {
	project := "projects/" + url.PathEscape(c.ProjectID)
	if p == "" {
		return apiPath(project)
	}
	return apiPath(project + "/" + strings.TrimLeft(p, "/"))
}

func (c *Client) taskPath(taskID, p string) string {
	tp := "tasks/" + url.PathEscape(taskID)
	if p != "" {
		tp += "/" + p
	}
	return c.projectPath(tp)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
