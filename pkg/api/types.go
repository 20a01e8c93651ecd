package api

// Role is the access level of a user account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleUser    Role = "user"
)

// User is the authenticated identity returned by /profile and /users
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CanManageUsers reports whether the user may open user administration
func (u *User) CanManageUsers() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanWorkTickets reports whether the user may be assigned tickets
func (u *User) CanWorkTickets() bool {
	return u != nil && (u.Role == RoleSupport || u.Role == RoleAdmin)
}

// LoginResponse is the body of POST /login. The backend may omit the user.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// TicketStatus is the workflow state of a ticket
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusPending    TicketStatus = "pending"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// TicketPriority is the urgency of a ticket
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Valid reports whether s is a known status
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Valid reports whether p is a known priority
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Ticket is a support request
type Ticket struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Priority     TicketPriority `json:"priority"`
	Status       TicketStatus   `json:"status"`
	UserID       int64          `json:"user_id"`
	AssignedTo   *int64         `json:"assigned_to"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	User         *User          `json:"user,omitempty"`
	AssignedUser *User          `json:"assigned_user,omitempty"`
}

// Comment is a message attached to a ticket
type Comment struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	UserID    int64  `json:"user_id"`
	TicketID  int64  `json:"ticket_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	User      *User  `json:"user,omitempty"`
}

// CreateTicketRequest is the body of POST /tickets
type CreateTicketRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
}

// UpdateTicketRequest is the body of PUT /tickets/{id}
type UpdateTicketRequest struct {
	Status     TicketStatus   `json:"status,omitempty"`
	AssignedTo *int64         `json:"assigned_to,omitempty"`
	Priority   TicketPriority `json:"priority,omitempty"`
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 Role   `json:"role"`
}

// UpdateUserRequest is the body of PUT /users/{id}. Password fields are optional.
type UpdateUserRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Role                 Role   `json:"role"`
	Password             string `json:"password,omitempty"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

// UpdateProfileRequest is the body of PUT /profile
type UpdateProfileRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password,omitempty"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

// DashboardStats holds the role-dependent counters of GET /dashboard.
// Only the fields relevant to the caller's role are populated.
type DashboardStats struct {
	TotalUsers        *int           `json:"total_users,omitempty"`
	TotalTickets      *int           `json:"total_tickets,omitempty"`
	TicketsOpen       *int           `json:"tickets_open,omitempty"`
	TicketsInProgress *int           `json:"tickets_in_progress,omitempty"`
	TicketsByPriority map[string]int `json:"tickets_by_priority,omitempty"`

	AssignedTickets       *int `json:"assigned_tickets,omitempty"`
	ResolvedTicketsToday  *int `json:"resolved_tickets_today,omitempty"`
	ResolvedTicketsTotal  *int `json:"resolved_tickets_total,omitempty"`
	UnassignedTickets     *int `json:"unassigned_tickets,omitempty"`
	UrgentAssignedTickets *int `json:"urgent_assigned_tickets,omitempty"`

	MyOpenTickets   *int `json:"my_open_tickets,omitempty"`
	MyClosedTickets *int `json:"my_closed_tickets,omitempty"`

	RecentTickets []Ticket `json:"recent_tickets,omitempty"`
}
