package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Chat session operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the caller's chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/chat/sessions")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sessionsCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get SESSION_ID",
		Short: "Fetch one session with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/chat/session/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sessionsCmd.AddCommand(getCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doDelete(fmt.Sprintf("%s/chat/session/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sessionsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(sessionsCmd)
}
