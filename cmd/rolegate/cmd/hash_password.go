package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RoleGate/rolegate/internal/domain/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an Argon2id hash for a user credential",
	Long: `Generate an Argon2id hash of a password for use in the directory.

The output is in PHC format and can be stored directly in a user's
password_hash field.

Example:
  rolegate hash-password "s3cret"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The password will appear in shell history.
Consider clearing history after use or using an environment variable:
  rolegate hash-password "$MY_PASSWORD"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
