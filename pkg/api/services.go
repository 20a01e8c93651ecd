package api

import (
	"context"
	"fmt"
	"net/http"
)

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login response did not include an access token")
	}
	return &resp, nil
}

// GetProfile returns the identity behind the current token
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile updates the current user's own account
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/profile", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListTickets returns the tickets visible to the current user
func (c *Client) ListTickets(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicket returns a single ticket
func (c *Client) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	var ticket Ticket
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CreateTicket opens a new ticket
func (c *Client) CreateTicket(ctx context.Context, req CreateTicketRequest) (*Ticket, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("ticket title cannot be empty")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, fmt.Errorf("invalid ticket priority: %s", req.Priority)
	}
	var ticket Ticket
	if err := c.do(ctx, http.MethodPost, "/tickets", req, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicket changes status, priority or assignee of a ticket
func (c *Client) UpdateTicket(ctx context.Context, id int64, req UpdateTicketRequest) (*Ticket, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("invalid ticket status: %s", req.Status)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, fmt.Errorf("invalid ticket priority: %s", req.Priority)
	}
	var ticket Ticket
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d", id), req, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AssignTicket assigns a ticket to a support user
func (c *Client) AssignTicket(ctx context.Context, id, userID int64) (*Ticket, error) {
	var ticket Ticket
	body := map[string]int64{"assigned_to": userID}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d/assign", id), body, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AddComment posts a comment on a ticket
func (c *Client) AddComment(ctx context.Context, ticketID int64, content string) (*Comment, error) {
	if content == "" {
		return nil, fmt.Errorf("comment cannot be empty")
	}
	var comment Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/comments", ticketID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns the comments of a ticket
func (c *Client) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	var comments []Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d/comments", ticketID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListUsers returns every user account (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListSupportUsers returns the users tickets can be assigned to
func (c *Client) ListSupportUsers(ctx context.Context) ([]User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return filterRole(users, RoleSupport), nil
}

// CreateUser creates a user account
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Password != req.PasswordConfirmation {
		return nil, fmt.Errorf("password confirmation does not match")
	}
	var user User
	if err := c.do(ctx, http.MethodPost, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates a user account
func (c *Client) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	if req.Password != req.PasswordConfirmation {
		return nil, fmt.Errorf("password confirmation does not match")
	}
	var user User
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user account
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// DashboardStats returns the counters for the caller's role
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func filterRole(users []User, role Role) []User {
	filtered := make([]User, 0, len(users))
	for _, u := range users {
		if u.Role == role {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
