package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	// create
	var userId, displayName string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userId == "" {
				return fmt.Errorf("--userId required")
			}
			payload := map[string]interface{}{"userId": userId}
			if displayName != "" {
				payload["displayName"] = displayName
			}
			data, err := doPostJSON(apiFlag+"/users", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVar(&userId, "userId", "", "UserID (required)")
	createCmd.Flags().StringVarP(&displayName, "name", "n", "", "Display name")
	_ = createCmd.MarkFlagRequired("userId")
	usersCmd.AddCommand(createCmd)

	// me
	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/users/me")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	usersCmd.AddCommand(meCmd)

	rootCmd.AddCommand(usersCmd)
}
