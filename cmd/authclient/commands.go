package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	auth "github.com/goliatone/go-auth-client"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Restore the stored session and show who is signed in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		res := mount(ctx, s)
		out := cmd.OutOrStdout()
		if res.User == nil {
			fmt.Fprintf(out, "not signed in (%s)\n", res.Outcome)
			if res.Err != nil && auth.Classify(res.Err) != auth.KindNoSession {
				fmt.Fprintln(out, auth.UserMessage(res.Err))
			}
			return nil
		}

		fmt.Fprintf(out, "signed in as %s <%s>\n", res.User.DisplayName(), res.User.Email)
		for _, route := range res.User.AllowedRoutes {
			fmt.Fprintf(out, "  %s\n", route)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Evaluate the route guard for one or more paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		mount(ctx, s)
		st := s.client.State()
		guard := s.client.Guard()
		for _, path := range args {
			d := guard.Decide(path, st)
			line := fmt.Sprintf("%-30s %s", d.Path, d.Outcome)
			if d.Outcome == auth.OutcomeRedirect {
				line += " -> " + d.RedirectTo
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		remember, _ := cmd.Flags().GetBool("remember")

		if password == "" {
			p, err := readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "password: ")
			if err != nil {
				return err
			}
			password = p
		}

		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		user, err := s.client.Login(ctx, auth.LoginRequest{
			Email:      email,
			Password:   password,
			RememberMe: remember,
		})
		if err != nil {
			return formError(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.DisplayName())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear stored credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		// local credentials are cleared even when the backend call fails
		if err := s.client.Logout(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "backend logout: %v\n", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		req := auth.RegisterRequest{}
		req.Email, _ = flags.GetString("email")
		req.Password, _ = flags.GetString("password")
		req.FirstName, _ = flags.GetString("first-name")
		req.LastName, _ = flags.GetString("last-name")
		req.JobTitle, _ = flags.GetString("job-title")
		req.Department, _ = flags.GetString("department")
		req.ConfirmPassword = req.Password

		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.client.Register(ctx, req); err != nil {
			return formError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s, sign in to continue\n", strings.TrimSpace(req.Email))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "password, prompted when empty")
	loginCmd.Flags().Bool("remember", false, "keep the session for longer")
	_ = loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("password", "", "password")
	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	registerCmd.Flags().String("job-title", "", "job title")
	registerCmd.Flags().String("department", "", "department")

	rootCmd.AddCommand(statusCmd, checkCmd, loginCmd, logoutCmd, registerCmd)
}

// formError turns a flow error into the message a form banner would show,
// listing field errors when there are any.
func formError(err error) error {
	msg := auth.UserMessage(err)
	fields := auth.ValidationFields(err)
	if len(fields) == 0 {
		return fmt.Errorf("%s", msg)
	}

	var b strings.Builder
	b.WriteString(msg)
	for field, fieldErr := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, fieldErr)
	}
	return fmt.Errorf("%s", b.String())
}

func readLine(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
