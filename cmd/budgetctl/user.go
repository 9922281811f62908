package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/core"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(userCreateCmd(), userPromoteCmd(), userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			admin, _ := cmd.Flags().GetBool("admin")

			role := core.RoleUser
			if admin {
				role = core.RoleAdmin
			}

			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			u, err := h.auth.CreateUser(cmd.Context(), auth.Registration{
				Name:     name,
				Email:    email,
				Password: password,
			}, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %s\n", u.Email, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "login email")
	cmd.Flags().String("password", "", "initial password")
	cmd.Flags().Bool("admin", false, "create the user with the ADMIN role")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the ADMIN role to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			u, err := h.auth.Promote(cmd.Context(), args[0])
			if core.IsNotFound(err) {
				return fmt.Errorf("no user with email %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.Role)
			return nil
		},
	}
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their account and transaction counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			users, err := h.auth.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tACCOUNTS\tTRANSACTIONS")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", u.Email, u.Name, u.Role, u.Accounts, u.Transactions)
			}
			return w.Flush()
		},
	}
}
