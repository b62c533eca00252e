package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	keysCmd := &cobra.Command{Use: "key-requests", Short: "Shared-key request review (admin)"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List key-access requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/admin/key-requests")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	keysCmd.AddCommand(listCmd)

	processCmd := &cobra.Command{
		Use:   "process USER_ID (approve|deny)",
		Short: "Approve or deny a pending request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(
				fmt.Sprintf("%s/admin/key-requests/%s", apiFlag, args[0]),
				map[string]string{"action": args[1]},
			)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	keysCmd.AddCommand(processCmd)

	rootCmd.AddCommand(keysCmd)
}
