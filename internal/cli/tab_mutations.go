package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harun/ticketdesk/pkg/api"
)

var errAdminOnly = errors.New("only administrators can do that")

var errSupportOnly = errors.New("only support agents and administrators can do that")

// mutate runs the commands that write to the backend
func (s *tabShell) mutate(ctx context.Context, cmd string, args []string) error {
	user := s.coord.User()

	switch cmd {
	case "new-ticket":
		if len(args) < 2 {
			return fmt.Errorf("usage: new-ticket <priority> <title> [| <description>]")
		}
		priority := api.TicketPriority(args[0])
		if !priority.Valid() {
			return fmt.Errorf("invalid priority %q", args[0])
		}
		title, description, _ := strings.Cut(strings.Join(args[1:], " "), "|")
		title = strings.TrimSpace(title)
		if title == "" {
			return fmt.Errorf("ticket title is required")
		}
		t, err := s.tab.data.CreateTicket(ctx, api.CreateTicketRequest{
			Title:       title,
			Description: strings.TrimSpace(description),
			Priority:    priority,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Created ticket #%d.\n", t.ID)

	case "set-status", "set-priority":
		if !user.CanWorkTickets() {
			return errSupportOnly
		}
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <ticket-id> <value>", cmd)
		}
		id, err := ticketID(args[:1])
		if err != nil {
			return err
		}
		var req api.UpdateTicketRequest
		if cmd == "set-status" {
			req.Status = api.TicketStatus(args[1])
			if !req.Status.Valid() {
				return fmt.Errorf("invalid status %q", args[1])
			}
		} else {
			req.Priority = api.TicketPriority(args[1])
			if !req.Priority.Valid() {
				return fmt.Errorf("invalid priority %q", args[1])
			}
		}
		t, err := s.tab.data.UpdateTicket(ctx, id, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "#%d is now %s/%s.\n", t.ID, t.Status, t.Priority)

	case "assign":
		if !user.CanManageUsers() {
			return errAdminOnly
		}
		if len(args) != 2 {
			return fmt.Errorf("usage: assign <ticket-id> <user-id>")
		}
		id, err := ticketID(args[:1])
		if err != nil {
			return err
		}
		userID, err := userIDArg(args[1])
		if err != nil {
			return err
		}
		if _, err := s.tab.data.AssignTicket(ctx, id, userID); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "#%d assigned to user %d.\n", id, userID)

	case "support":
		if !user.CanManageUsers() {
			return errAdminOnly
		}
		agents, err := s.tab.data.ListSupportUsers(ctx)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Fprintln(s.out, "No support agents.")
		}
		for _, u := range agents {
			fmt.Fprintf(s.out, "%d %s <%s>\n", u.ID, u.Name, u.Email)
		}

	case "user-add":
		if !user.CanManageUsers() {
			return errAdminOnly
		}
		if len(args) < 4 {
			return fmt.Errorf("usage: user-add <role> <email> <password> <name>")
		}
		role, err := parseRole(args[0])
		if err != nil {
			return err
		}
		created, err := s.tab.data.CreateUser(ctx, api.CreateUserRequest{
			Name:                 strings.Join(args[3:], " "),
			Email:                args[1],
			Password:             args[2],
			PasswordConfirmation: args[2],
			Role:                 role,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Created user %d.\n", created.ID)

	case "user-edit":
		if !user.CanManageUsers() {
			return errAdminOnly
		}
		if len(args) < 4 {
			return fmt.Errorf("usage: user-edit <id> <role> <email> <name>")
		}
		id, err := userIDArg(args[0])
		if err != nil {
			return err
		}
		role, err := parseRole(args[1])
		if err != nil {
			return err
		}
		if _, err := s.tab.data.UpdateUser(ctx, id, api.UpdateUserRequest{
			Name:  strings.Join(args[3:], " "),
			Email: args[2],
			Role:  role,
		}); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Updated user %d.\n", id)

	case "user-rm":
		if !user.CanManageUsers() {
			return errAdminOnly
		}
		if len(args) != 1 {
			return fmt.Errorf("usage: user-rm <id>")
		}
		id, err := userIDArg(args[0])
		if err != nil {
			return err
		}
		if user.ID == id {
			return fmt.Errorf("you cannot delete your own account")
		}
		if err := s.tab.data.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Deleted user %d.\n", id)

	case "profile-edit":
		if len(args) < 2 {
			return fmt.Errorf("usage: profile-edit <email> <name>")
		}
		return s.updateProfile(ctx, api.UpdateProfileRequest{
			Name:  strings.Join(args[1:], " "),
			Email: args[0],
		})

	case "password":
		if len(args) != 1 {
			return fmt.Errorf("usage: password <new-password>")
		}
		if user == nil {
			return fmt.Errorf("profile not loaded yet; run 'profile' first")
		}
		return s.updateProfile(ctx, api.UpdateProfileRequest{
			Name:                 user.Name,
			Email:                user.Email,
			Password:             args[0],
			PasswordConfirmation: args[0],
		})
	}
	return nil
}

// updateProfile saves the profile and refreshes the cached user
func (s *tabShell) updateProfile(ctx context.Context, req api.UpdateProfileRequest) error {
	updated, err := s.tab.data.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	s.coord.UpdateUser(updated)
	fmt.Fprintln(s.out, "Profile updated.")
	return nil
}

func userIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id: %q", arg)
	}
	return id, nil
}

func parseRole(arg string) (api.Role, error) {
	switch role := api.Role(arg); role {
	case api.RoleAdmin, api.RoleSupport, api.RoleUser:
		return role, nil
	}
	return "", fmt.Errorf("invalid role %q (admin, support, user)", arg)
}
