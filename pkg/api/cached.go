package api

import (
	"context"
	"fmt"

	"github.com/harun/ticketdesk/pkg/querycache"
)

// Cache keys used by CachedClient
const (
	keyProfile   = "profile"
	keyTickets   = "tickets"
	keyUsers     = "users"
	keyDashboard = "dashboard"
)

// CachedClient serves read endpoints through a query cache and drops the
// affected entries after writes
type CachedClient struct {
	*Client
	cache *querycache.Cache
}

// NewCachedClient wraps client with cache
func NewCachedClient(client *Client, cache *querycache.Cache) *CachedClient {
	return &CachedClient{Client: client, cache: cache}
}

// Cache returns the underlying query cache
func (c *CachedClient) Cache() *querycache.Cache {
	return c.cache
}

// GetProfile returns the cached profile or fetches it
func (c *CachedClient) GetProfile(ctx context.Context) (*User, error) {
	v, err := c.cache.Fetch(ctx, keyProfile, func(ctx context.Context) (interface{}, error) {
		return c.Client.GetProfile(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

// UpdateProfile updates the profile and drops the cached copy
func (c *CachedClient) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	user, err := c.Client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyProfile)
	return user, nil
}

// ListTickets returns the cached ticket list or fetches it
func (c *CachedClient) ListTickets(ctx context.Context) ([]Ticket, error) {
	v, err := c.cache.Fetch(ctx, keyTickets, func(ctx context.Context) (interface{}, error) {
		return c.Client.ListTickets(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Ticket), nil
}

// GetTicket returns a cached ticket or fetches it
func (c *CachedClient) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	v, err := c.cache.Fetch(ctx, ticketKey(id), func(ctx context.Context) (interface{}, error) {
		return c.Client.GetTicket(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Ticket), nil
}

// ListComments returns the cached comments of a ticket or fetches them
func (c *CachedClient) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	v, err := c.cache.Fetch(ctx, ticketKey(ticketID)+"/comments", func(ctx context.Context) (interface{}, error) {
		return c.Client.ListComments(ctx, ticketID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Comment), nil
}

// CreateTicket creates a ticket and drops cached ticket lists
func (c *CachedClient) CreateTicket(ctx context.Context, req CreateTicketRequest) (*Ticket, error) {
	ticket, err := c.Client.CreateTicket(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyTickets)
	c.cache.Invalidate(keyDashboard)
	return ticket, nil
}

// UpdateTicket updates a ticket and drops cached ticket data
func (c *CachedClient) UpdateTicket(ctx context.Context, id int64, req UpdateTicketRequest) (*Ticket, error) {
	ticket, err := c.Client.UpdateTicket(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyTickets)
	c.cache.Invalidate(keyDashboard)
	return ticket, nil
}

// AssignTicket assigns a ticket and drops cached ticket data
func (c *CachedClient) AssignTicket(ctx context.Context, id, userID int64) (*Ticket, error) {
	ticket, err := c.Client.AssignTicket(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyTickets)
	c.cache.Invalidate(keyDashboard)
	return ticket, nil
}

// AddComment posts a comment and drops the cached comment list
func (c *CachedClient) AddComment(ctx context.Context, ticketID int64, content string) (*Comment, error) {
	comment, err := c.Client.AddComment(ctx, ticketID, content)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(ticketKey(ticketID) + "/comments")
	return comment, nil
}

// ListUsers returns the cached user list or fetches it
func (c *CachedClient) ListUsers(ctx context.Context) ([]User, error) {
	v, err := c.cache.Fetch(ctx, keyUsers, func(ctx context.Context) (interface{}, error) {
		return c.Client.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]User), nil
}

// ListSupportUsers filters the cached user list by the support role
func (c *CachedClient) ListSupportUsers(ctx context.Context) ([]User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return filterRole(users, RoleSupport), nil
}

// CreateUser creates a user and drops the cached user list
func (c *CachedClient) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	user, err := c.Client.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyUsers)
	return user, nil
}

// UpdateUser updates a user and drops the cached user list
func (c *CachedClient) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	user, err := c.Client.UpdateUser(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(keyUsers)
	return user, nil
}

// DeleteUser deletes a user and drops the cached user list
func (c *CachedClient) DeleteUser(ctx context.Context, id int64) error {
	if err := c.Client.DeleteUser(ctx, id); err != nil {
		return err
	}
	c.cache.Invalidate(keyUsers)
	return nil
}

// DashboardStats returns cached dashboard counters or fetches them
func (c *CachedClient) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	v, err := c.cache.Fetch(ctx, keyDashboard, func(ctx context.Context) (interface{}, error) {
		return c.Client.DashboardStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DashboardStats), nil
}

func ticketKey(id int64) string {
	return fmt.Sprintf("%s/%d", keyTickets, id)
}
