package cli

import (
	"context"
	"fmt"

	"github.com/JvSe/deep-logs/internal/services"
	"github.com/spf13/cobra"
)

// keyCmd represents the key command group
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Device API key management",
	Long: `Manage the keys devices send in the X-API-Key header when submitting logs.
Changes apply to a running server immediately.`,
}

// keyListCmd lists all device keys
var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List device API keys",
	Run: func(cmd *cobra.Command, args []string) {
		keys, err := deviceKeys.List(context.Background())
		if err != nil {
			fail("listing keys: %v", err)
		}

		fmt.Println("------------------------------------------------------------------------")
		fmt.Printf("%-20s %-12s %-8s %-20s %s\n", "Name", "Key", "Status", "Last used", "Created")
		fmt.Println("------------------------------------------------------------------------")
		for _, k := range keys {
			status := "active"
			if !k.Active() {
				status = "revoked"
			}
			lastUsed := "never"
			if k.LastUsedAt != nil {
				lastUsed = k.LastUsedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-20s %-12s %-8s %-20s %s\n", k.Name, k.Hint(), status, lastUsed, k.CreatedAt.Format("2006-01-02"))
		}
		fmt.Println("------------------------------------------------------------------------")
		fmt.Printf("%d key(s)\n", len(keys))
	},
}

// keyShowCmd prints one device key
var keyShowCmd = &cobra.Command{
	Use:   "show [NAME]",
	Short: "Print a device API key",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := deviceKeys.Get(context.Background(), keyName(args))
		if err != nil {
			fail("key %q: %v", keyName(args), err)
		}
		if !key.Active() {
			fmt.Printf("Key %q is revoked.\n", key.Name)
			return
		}

		fmt.Printf("API key %q:\n", key.Name)
		fmt.Println(key.Secret)
	},
}

// keyCreateCmd adds a device key
var keyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Add a device API key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := deviceKeys.Create(context.Background(), args[0])
		if err != nil {
			fail("creating key: %v", err)
		}

		fmt.Printf("API key %q created:\n", key.Name)
		fmt.Println(key.Secret)
	},
}

// keyResetCmd gives a device key a new secret
var keyResetCmd = &cobra.Command{
	Use:   "reset [NAME]",
	Short: "Give a device API key a new secret",
	Long:  `Replace the secret of a device API key. Devices still sending the old secret are rejected afterwards.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := keyName(args)
		fmt.Printf("Warning: devices using the current secret of %q will no longer be able to submit logs.\n", name)
		if !confirm("Reset the API key?") {
			fmt.Println("Cancelled.")
			return
		}

		key, err := deviceKeys.Reset(context.Background(), name)
		if err != nil {
			fail("resetting key: %v", err)
		}

		fmt.Println()
		fmt.Printf("API key %q reset. New secret:\n", key.Name)
		fmt.Println(key.Secret)
	},
}

// keyRevokeCmd stops accepting a device key
var keyRevokeCmd = &cobra.Command{
	Use:   "revoke NAME",
	Short: "Stop accepting a device API key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !confirm(fmt.Sprintf("Revoke API key %q?", args[0])) {
			fmt.Println("Cancelled.")
			return
		}
		if err := deviceKeys.Revoke(context.Background(), args[0]); err != nil {
			fail("revoking key: %v", err)
		}
		fmt.Printf("API key %q revoked. Use 'key reset %s' to issue it a new secret.\n", args[0], args[0])
	},
}

func keyName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return services.DefaultDeviceKeyName
}

func init() {
	keyCmd.AddCommand(keyListCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyCreateCmd)
	keyCmd.AddCommand(keyResetCmd)
	keyCmd.AddCommand(keyRevokeCmd)
}
