package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/spf13/cobra"
)

var (
	createEmail string
	createName  string
	createRole  string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Dashboard user management",
	Long:  `Create, list, disable and enable dashboard users, and reset their passwords.`,
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a dashboard user",
	Long:  `Create a dashboard user. Values not given as flags are asked for interactively.`,
	Run: func(cmd *cobra.Command, args []string) {
		email := createEmail
		if email == "" {
			email = readLine("Email: ")
		}
		if email == "" {
			fail("email is required")
		}

		password := readPassword(fmt.Sprintf("Password (at least %d characters): ", services.MinPasswordLength))

		name := createName
		if name == "" {
			name = readLine("Name (optional, press enter to skip): ")
		}

		newUser, err := userService.CreateUser(context.Background(), email, password, name, models.UserRole(createRole))
		if err != nil {
			fail("creating user: %v", err)
		}

		fmt.Println()
		fmt.Println("User created.")
		fmt.Printf("  ID:    %d\n", newUser.ID)
		fmt.Printf("  Email: %s\n", newUser.Email)
		fmt.Printf("  Name:  %s\n", newUser.Name)
		fmt.Printf("  Role:  %s\n", newUser.Role)
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboard users",
	Run: func(cmd *cobra.Command, args []string) {
		users, err := userService.ListUsers(context.Background())
		if err != nil {
			fail("listing users: %v", err)
		}

		if len(users) == 0 {
			fmt.Println("No users.")
			return
		}

		fmt.Println("--------------------------------------------------------------------------------")
		fmt.Printf("%-6s %-30s %-20s %-8s %-8s %s\n", "ID", "Email", "Name", "Role", "Active", "Last login")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, u := range users {
			lastLogin := "never"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-6d %-30s %-20s %-8s %-8t %s\n", u.ID, u.Email, u.Name, u.Role, u.IsActive, lastLogin)
		}
		fmt.Println("--------------------------------------------------------------------------------")
		fmt.Printf("%d user(s)\n", len(users))
	},
}

// userResetPwdCmd resets a user's password
var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd [ID]",
	Short: "Reset a user's password",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var idStr string
		if len(args) == 1 {
			idStr = args[0]
		} else {
			users, err := userService.ListUsers(ctx)
			if err != nil {
				fail("listing users: %v", err)
			}
			if len(users) == 0 {
				fmt.Println("No users.")
				return
			}
			for _, u := range users {
				fmt.Printf("  [%d] %s (%s)\n", u.ID, u.Email, u.Name)
			}
			fmt.Println()
			idStr = readLine("User ID: ")
		}

		userID := parseUserID(idStr)
		targetUser, err := userService.GetUserByID(ctx, userID)
		if err != nil {
			fail("user %d: %v", userID, err)
		}

		fmt.Printf("\nWarning: the password of '%s' (ID: %d) will be replaced.\n", targetUser.Email, targetUser.ID)
		if !confirm("Continue?") {
			fmt.Println("Cancelled.")
			return
		}

		newPassword := readPassword(fmt.Sprintf("New password (at least %d characters): ", services.MinPasswordLength))
		if err := userService.ResetPassword(ctx, userID, newPassword); err != nil {
			fail("resetting password: %v", err)
		}

		fmt.Printf("\nPassword of '%s' reset.\n", targetUser.Email)
	},
}

// userDisableCmd blocks a user from logging in
var userDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Block a user from logging in",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setActive(parseUserID(args[0]), false)
	},
}

// userEnableCmd allows a disabled user to log in again
var userEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Allow a disabled user to log in again",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setActive(parseUserID(args[0]), true)
	},
}

func setActive(id uint, active bool) {
	if err := userService.SetActive(context.Background(), id, active); err != nil {
		fail("updating user %d: %v", id, err)
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Printf("User %d %s.\n", id, state)
}

func parseUserID(s string) uint {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		fail("invalid user ID %q", s)
	}
	return uint(id)
}

func init() {
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "login email")
	userCreateCmd.Flags().StringVar(&createName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&createRole, "role", string(models.UserRoleViewer), "admin or viewer")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userResetPwdCmd)
	userCmd.AddCommand(userDisableCmd)
	userCmd.AddCommand(userEnableCmd)
}
