package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitoshi/flextime/internal/config"
	"github.com/hitoshi/flextime/internal/model"
)

// skipInitAnnotation が付いたコマンドは設定の読み込みを行わない。
const skipInitAnnotation = "flextime/skip-init"

// cli はサブコマンド間で共有する状態。
type cli struct {
	logw       io.Writer
	out        io.Writer
	cfg        *config.Config
	jsonOutput bool
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析して実行する。argsにはos.Args[1:]を渡す。
// wはログの出力先、結果は標準出力に書き込む。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w, os.Stdout)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// NewRootCommand はflextimeのコマンドツリーを生成する。
// サブコマンドを省略した場合はserveとして起動する。
func NewRootCommand(logw, out io.Writer) *cobra.Command {
	c := &cli{logw: logw, out: out}

	root := &cobra.Command{
		Use:           "flextime",
		Short:         "FlexTime client core: local JSON API and CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipInitAnnotation] == "true" {
				return nil
			}
			cfg, err := Init(c.logw)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			c.cfg = cfg
			slog.Debug("starting application", slog.String("command", cmd.CommandPath()))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c.cfg)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		c.serveCommand(),
		c.migrateCommand(),
		c.healthcheckCommand(),
		c.signInCommand("login", "Sign in with email and password"),
		c.signInCommand("signup", "Create an account and sign in"),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.dashboardCommand(),
		c.reportCommand(),
		c.tasksCommand(),
		c.checkinsCommand(),
	)
	return root
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c.cfg)
		},
	}
}

func (c *cli) migrateCommand() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the PostgreSQL blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(c.cfg, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back one migration")
	return cmd
}

func (c *cli) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "healthcheck",
		Short:       "Probe /health of a running server (for container health checks)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			// 軽量サブコマンドのため、フル初期化をスキップする
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8090"
			}
			return runHealthcheck(port)
		},
	}
}

// withApp は依存関係を構築してセッション購読を開始し、fnを実行する。
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *App) error) error {
	a, err := Build(ctx, c.cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Close()
	a.Start()
	return fn(ctx, a)
}

// withUser はセッションが必要なコマンドを実行する。
func (c *cli) withUser(ctx context.Context, fn func(ctx context.Context, a *App, userID int64) error) error {
	return c.withApp(ctx, func(ctx context.Context, a *App) error {
		userID, err := a.Session.RemoteUserID()
		if errors.Is(err, model.ErrNoSession) {
			return errNotSignedIn
		}
		if err != nil {
			return err
		}
		return fn(ctx, a, userID)
	})
}

// print は--json指定時はJSONで、それ以外はtextで出力する。
func (c *cli) print(v any, text func(w io.Writer) error) error {
	if c.jsonOutput {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(c.out)
}

func (c *cli) signInCommand(use, short string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *App) error {
				signIn := a.Session.SignIn
				if use == "signup" {
					signIn = a.Session.SignUp
				}
				sess, err := signIn(ctx, email, password)
				if err != nil {
					return err
				}
				return c.print(sess, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Signed in as %s (%s)\n", displayEmail(sess), sess.UserID)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear cached data for the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *App) error {
				if err := a.Session.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(c.out, "Signed out.")
				return err
			})
		},
	}
}

func (c *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *App) error {
				sess := a.Session.Current()
				return c.print(sess, func(w io.Writer) error {
					if sess == nil {
						_, err := fmt.Fprintln(w, "Not signed in.")
						return err
					}
					_, err := fmt.Fprintf(w, "%s (%s)\n", displayEmail(sess), sess.UserID)
					return err
				})
			})
		},
	}
}

func displayEmail(s *model.Session) string {
	if e := s.EmailOrEmpty(); e != "" {
		return e
	}
	return "(no email)"
}

// parseIDArg はコマンド引数のタスクIDを解析する。
func parseIDArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: "id", Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}
