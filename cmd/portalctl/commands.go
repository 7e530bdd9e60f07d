package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/services"
	"dealerhub/internal/infrastructure/directory"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Administer the dealerhub portal",
		Long: `portalctl prepares user directories and inspects the portal's
role and access configuration without a running server.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newHashPasswordCmd(),
		newRolesCmd(),
		newViewsCmd(),
		newCheckCmd(),
		newUsersCmd(),
	)
	return root
}

func newHashPasswordCmd() *cobra.Command {
	var (
		password string
		cost     int
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for a users file",
		Long:  "Hashes --password, or the first line of stdin when the flag is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (read from stdin when empty)")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	return cmd
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print every role with its permissions and landing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			navigation := services.NewNavigationService(services.NewRouteGuard("/login", "/unauthorized"))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tNAME\tHOME\tPERMISSIONS")
			for _, role := range domain.AllRoles() {
				session := &domain.Session{Role: role, Permissions: domain.PermissionsFor(role)}

				perms := make([]string, 0, len(session.Permissions))
				for _, p := range session.Permissions.Sorted() {
					perms = append(perms, string(p))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					role.String(),
					role.DisplayName(),
					navigation.HomePath(session),
					strings.Join(perms, ","),
				)
			}
			return w.Flush()
		},
	}
}

func newViewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "Print every view with the access rule guarding it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VIEW\tPATH\tACCESS\tROLES\tPERMISSIONS")
			for _, v := range services.Views() {
				roles := make([]string, 0, len(v.Rule.Roles))
				for _, r := range v.Rule.Roles.Sorted() {
					roles = append(roles, r.String())
				}
				perms := make([]string, 0, len(v.Rule.Permissions))
				for _, p := range v.Rule.Permissions.Sorted() {
					perms = append(perms, string(p))
				}
				access := "public"
				if v.Rule.NeedsSession() {
					access = "session"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					v.ID, v.Path, access, orDash(roles), orDash(perms))
			}
			return w.Flush()
		},
	}
}

func orDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func newCheckCmd() *cobra.Command {
	var (
		roleName   string
		viewName   string
		loginPath  string
		deniedPath string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the route guard for a role and view",
		Long:  "Prints render or the redirect the guard would issue. Omit --role to check an anonymous visitor.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, ok := services.LookupView(services.ViewID(viewName))
			if !ok {
				return fmt.Errorf("unknown view %q (known: %s)", viewName, strings.Join(viewIDs(), ", "))
			}

			var session *domain.Session
			if roleName != "" {
				role, err := domain.ParseRole(roleName)
				if err != nil {
					return err
				}
				session = &domain.Session{Role: role, Permissions: domain.PermissionsFor(role)}
			}

			decision := services.NewRouteGuard(loginPath, deniedPath).Evaluate(view.Rule, session)
			if decision.Rendered() {
				fmt.Fprintln(cmd.OutOrStdout(), "render")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s (%s)\n", decision.Path, decision.Reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "role to evaluate, e.g. dealer_manager")
	cmd.Flags().StringVar(&viewName, "view", "", "view id, e.g. admin-dashboard")
	cmd.Flags().StringVar(&loginPath, "login-path", "/login", "login redirect target")
	cmd.Flags().StringVar(&deniedPath, "access-denied-path", "/unauthorized", "access denied redirect target")
	_ = cmd.MarkFlagRequired("view")
	return cmd
}

func viewIDs() []string {
	views := services.Views()
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, string(v.ID))
	}
	return ids
}

func newUsersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Work with local user directory files",
	}

	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a users file for mistakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			parsed, err := directory.ParseUsers(data)
			if err != nil {
				return fmt.Errorf("%s is invalid:\n%w", file, err)
			}

			counts := make(map[domain.Role]int)
			disabled := 0
			for _, u := range parsed {
				counts[u.Role]++
				if u.Disabled {
					disabled++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d users ok (%d disabled)\n", file, len(parsed), disabled)
			for _, role := range domain.AllRoles() {
				if counts[role] > 0 {
					fmt.Fprintf(out, "  %s: %d\n", role.String(), counts[role])
				}
			}
			return nil
		},
	}
	validate.Flags().StringVarP(&file, "file", "f", "configs/users.yaml", "users file to check")

	users.AddCommand(validate)
	return users
}
