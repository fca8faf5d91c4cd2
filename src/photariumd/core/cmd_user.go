package core

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create a user account directly in the database.

This is the bootstrap path for the first admin account; afterwards
accounts can be managed through the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserCreate(cmd)
	},
}

func init() {
	userCreateCmd.Flags().String("name", "", "Account name (required)")
	userCreateCmd.Flags().String("email", "", "Account email (required)")
	userCreateCmd.Flags().String("role", "guest", "Account role: admin, owner or guest")
	userCreateCmd.Flags().StringSlice("groups", nil, "Sharing group aliases")
	userCreateCmd.Flags().StringSlice("providers", nil, "Allowed upload providers (owners only; empty means all)")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

// promptPassword reads a password twice without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func runUserCreate(cmd *cobra.Command) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	role, _ := cmd.Flags().GetString("role")
	groups, _ := cmd.Flags().GetStringSlice("groups")
	providers, _ := cmd.Flags().GetStringSlice("providers")

	password, err := promptPassword()
	if err != nil {
		return err
	}

	database, err := db.New(db.Config{
		PersistPath: viper.GetString("database.path"),
		LoadOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	manager := auth.NewUserManager(auth.NewRepository(database))
	user, err := manager.CreateUser(name, email, password, role)
	if err != nil {
		database.Shutdown()
		return err
	}

	if len(groups) > 0 {
		if err := manager.SetGroups(user.ID, groups); err != nil {
			database.Shutdown()
			return err
		}
	}
	if len(providers) > 0 {
		if err := manager.SetAllowedProviders(user.ID, providers); err != nil {
			database.Shutdown()
			return err
		}
	}

	if err := database.Shutdown(); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}

	fmt.Printf("Created user %s (%s) with role %s\n", user.Name, user.ID, user.Role)
	return nil
}
