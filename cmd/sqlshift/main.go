package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/modoterra/sqlshift/internal/buildinfo"
	"github.com/modoterra/sqlshift/pkg/config"
	"github.com/modoterra/sqlshift/pkg/converter"
	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/logging"
	"github.com/modoterra/sqlshift/pkg/logs"
	"github.com/modoterra/sqlshift/pkg/notify"
	"github.com/modoterra/sqlshift/pkg/session"
	"github.com/modoterra/sqlshift/pkg/state"
	"github.com/modoterra/sqlshift/pkg/transport/api"
	tuimodel "github.com/modoterra/sqlshift/pkg/tui/model"
)

var (
	configDir string
	stateDir  string
	apiURL    string
	timeout   time.Duration
	logLevel  string
)

// runtime holds what PersistentPreRunE wires up for every command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	closer   io.Closer
	state    *state.FileStore
	client   *api.Client
	session  *session.Store
	notifier notify.Notifier
	center   *notify.Center
}

var rt *runtime

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sqlshift",
	Short:             "Convert SQL Server, Oracle and MySQL queries to PostgreSQL",
	Long:              "sqlshift is a terminal client for a SQL migration service: convert, format and minify queries, and browse the service logs.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentPreRunE = setup
	// Runs after failing commands too, unlike PersistentPostRun.
	cobra.OnFinalize(func() {
		if rt != nil && rt.closer != nil {
			rt.closer.Close()
		}
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", "", "configuration directory (default $XDG_CONFIG_HOME/sqlshift)")
	pf.StringVar(&stateDir, "state-dir", "", "directory for the saved session and log file (default $XDG_STATE_HOME/sqlshift)")
	pf.StringVar(&apiURL, "api-url", "", "base URL of the SQL migration service")
	pf.DurationVar(&timeout, "timeout", 0, "per-request timeout (default 10s)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(minifyCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	rt = nil
	if cmd == versionCmd || cmd == sampleCmd {
		return nil
	}

	v := viper.New()
	pf := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		config.KeyAPIURL:   "api-url",
		config.KeyStateDir: "state-dir",
		config.KeyTimeout:  "timeout",
		config.KeyLogLevel: "log-level",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			return err
		}
	}
	cfg, err := config.Load(v, configDir)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Sink: cfg.LogSink, File: cfg.LogFile})
	if err != nil {
		return err
	}
	logger = logger.With("component", "sqlshift", "cmd", cmd.Name())

	r := &runtime{
		cfg:    cfg,
		logger: logger,
		closer: closer,
		state:  state.NewFileStore(cfg.StatePath()),
	}
	// The TUI shows notices as toasts; plain commands print them.
	if cmd == rootCmd {
		r.center = notify.NewCenter(5 * time.Second)
		r.notifier = r.center
	} else {
		r.notifier = notify.NewWriter(cmd.ErrOrStderr())
	}

	r.client, err = api.New(api.Options{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.Timeout,
		Notifier: r.notifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	r.session = session.New(r.client, r.state, session.Options{
		WarnBefore: cfg.ExpiryWarnBefore,
		Notifier:   r.notifier,
		Logger:     logger,
	})
	r.client.SetTokens(r.session)

	rt = r
	return nil
}

func newConverter(minDuration time.Duration) *converter.Service {
	return converter.NewService(rt.client, converter.Options{
		Notifier:    rt.notifier,
		Logger:      rt.logger,
		MinDuration: minDuration,
		Enabled:     rt.cfg.EnabledDialects,
	})
}

// initSession restores the saved token and fails when there is none.
func initSession(cmd *cobra.Command) error {
	rt.session.Init(cmd.Context())
	return rt.session.Require()
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	theme, err := rt.state.Theme()
	if err != nil {
		rt.logger.Warn("read theme", "err", err)
	}
	// Decided before the first frame so the screen never flashes the wrong palette.
	dark := tuimodel.ApplyTheme(theme)

	app := tuimodel.New(tuimodel.Deps{
		Session:       rt.session,
		Converter:     newConverter(rt.cfg.ConvertMinDuration),
		Logs:          rt.client,
		Notices:       rt.center,
		Copier:        converter.NewCopier(os.Stdout),
		Themes:        rt.state,
		Dark:          dark,
		PageSize:      rt.cfg.LogsPageSize,
		CheckInterval: rt.cfg.ExpiryInterval,
		MinDuration:   rt.cfg.ConvertMinDuration,
		Timeout:       rt.cfg.Timeout,
		Logger:        rt.logger,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// --- Login / Logout ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Generate a token and sign in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !rt.session.Login(cmd.Context()) {
			return errors.New("login failed")
		}
		printSession(cmd.OutOrStdout(), rt.session.Snapshot())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the token and sign out",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt.session.Init(cmd.Context())
		rt.session.Logout(cmd.Context())
		return nil
	},
}

// --- Session ---

var sessionJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage the saved session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a valid session is saved",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt.session.Init(cmd.Context())
		snap := rt.session.Snapshot()
		if sessionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				State string `json:"state"`
				core.Session
			}{rt.session.State().String(), snap})
		}
		printSession(cmd.OutOrStdout(), snap)
		return nil
	},
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Swap the current token for a new one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initSession(cmd); err != nil {
			return err
		}
		if !rt.session.Refresh(cmd.Context()) {
			return errors.New("refresh failed")
		}
		printSession(cmd.OutOrStdout(), rt.session.Snapshot())
		return nil
	},
}

var watchAutoRefresh bool

var sessionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check token expiry periodically until the session ends",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initSession(cmd); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		w := session.NewWatcher(rt.session, rt.cfg.ExpiryInterval, rt.logger, func(st session.ExpiryStatus) {
			switch st.Kind {
			case session.ExpiryOK:
				if st.Remaining > 0 {
					fmt.Fprintf(out, "%s  session ok, %s left\n", time.Now().Format(time.TimeOnly), st.Remaining.Round(time.Second))
				}
			case session.ExpiryWarning:
				if watchAutoRefresh {
					rt.session.Refresh(ctx)
				}
			case session.ExpiryExpired:
				fmt.Fprintln(out, "session expired")
			}
		})
		w.Run(ctx)
		return nil
	},
}

func init() {
	sessionStatusCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")
	sessionWatchCmd.Flags().BoolVar(&watchAutoRefresh, "auto-refresh", false, "refresh the token when the expiry warning fires")
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionRefreshCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
}

func printSession(w io.Writer, s core.Session) {
	if !s.Authenticated {
		fmt.Fprintln(w, "not signed in")
		return
	}
	if s.Expiry.IsZero() {
		fmt.Fprintln(w, "signed in")
		return
	}
	fmt.Fprintf(w, "signed in, token expires %s (%s)\n",
		humanize.Time(s.Expiry), s.Expiry.Local().Format(time.RFC1123))
}

// --- Convert / Format / Minify ---

var (
	convertDialect string
	convertOut     string
	convertFormat  bool
)

var convertCmd = &cobra.Command{
	Use:     "convert [file|-]",
	Short:   "Convert a query to PostgreSQL",
	Example: "  sqlshift convert query.sql --dialect oracle --format\n  cat query.sql | sqlshift convert - -o out/",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := core.ParseDialect(convertDialect)
		if err != nil {
			return err
		}
		if !rt.cfg.DialectEnabled(d) {
			return fmt.Errorf("%s is not enabled: add it to %s in %s",
				d, config.KeyDialectsEnabled, filepath.Join(rt.cfg.ConfigDir, "config.yaml"))
		}
		query, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		if err := initSession(cmd); err != nil {
			return err
		}

		svc := newConverter(0)
		res, err := svc.Convert(cmd.Context(), d, query)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+w)
		}
		if !res.Success {
			return errors.New("conversion failed")
		}

		out := res.ConvertedQuery
		if convertFormat {
			if formatted, ok := svc.FormatOutput(cmd.Context(), out); ok {
				out = formatted
			}
		}
		return emit(cmd, out, convertOut)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertDialect, "dialect", "d", string(core.DialectSQLServer), "source dialect: sqlserver, oracle or mysql")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "write the result to a file or directory")
	convertCmd.Flags().BoolVar(&convertFormat, "format", false, "pretty-print the converted query")
}

var formatCmd = &cobra.Command{
	Use:   "format [file|-]",
	Short: "Pretty-print a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reshape(cmd, args, (*converter.Service).Format)
	},
}

var minifyCmd = &cobra.Command{
	Use:   "minify [file|-]",
	Short: "Collapse a query onto one line",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reshape(cmd, args, (*converter.Service).Minify)
	},
}

func reshape(cmd *cobra.Command, args []string, fn func(*converter.Service, context.Context, string) (string, bool)) error {
	query, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	if err := initSession(cmd); err != nil {
		return err
	}
	out, ok := fn(newConverter(0), cmd.Context(), query)
	if !ok {
		return errors.New("request failed")
	}
	return emit(cmd, out, "")
}

// readInput takes the query from a file argument, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return converter.LoadFile(args[0], nil)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// emit writes a query to dest, or to stdout (highlighted on a terminal).
func emit(cmd *cobra.Command, query, dest string) error {
	if dest != "" {
		_, err := converter.SaveFile(dest, query, rt.notifier)
		return err
	}
	w := cmd.OutOrStdout()
	if isTerminal(w) {
		theme, _ := rt.state.Theme()
		query = converter.Highlight(query, tuimodel.ApplyTheme(theme))
	}
	_, err := fmt.Fprintln(w, query)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// --- Sample ---

var sampleCmd = &cobra.Command{
	Use:   "sample <dialect>",
	Short: "Print a sample query for a dialect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := core.ParseDialect(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), converter.Sample(d))
		return nil
	},
}

// --- Logs ---

var (
	logsSearch   string
	logsSeverity string
	logsType     string
	logsSince    string
	logsUntil    string
	logsPage     int
	logsJSON     bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List service log records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, to, err := logs.ParseRange(logsSince, logsUntil, time.Local)
		if err != nil {
			return err
		}
		if err := initSession(cmd); err != nil {
			return err
		}
		records, err := rt.client.ListLogs(cmd.Context())
		if err != nil {
			return err
		}

		matched := logs.Apply(records, logs.Filter{
			Search:   logsSearch,
			Severity: logsSeverity,
			Type:     logsType,
			From:     from,
			To:       to,
		})
		p := logs.Paginate(len(matched), logsPage, rt.cfg.LogsPageSize)
		page := matched[p.Start:p.End]

		out := cmd.OutOrStdout()
		if logsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		}
		if len(page) == 0 {
			fmt.Fprintln(out, "no logs found")
			return nil
		}

		fmt.Fprintf(out, "%-17s %-10s %-9s %-40s %s\n", "CREATED", "TYPE", "SEVERITY", "TITLE", "ENDPOINT")
		for _, r := range page {
			fmt.Fprintf(out, "%-17s %-10s %-9s %-40s %s\n",
				r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Type, r.Severity, clip(r.Title, 40), r.Endpoint)
		}
		fmt.Fprintf(out, "\npage %d of %d (%d records)", p.Number, p.TotalPages, p.Total)
		if p.HasNext() {
			fmt.Fprintf(out, ", next: --page %d", p.Number+1)
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	f := logsCmd.Flags()
	f.StringVar(&logsSearch, "search", "", "case-insensitive text search")
	f.StringVar(&logsSeverity, "severity", "", "only this severity")
	f.StringVar(&logsType, "type", "", "only this type")
	f.StringVar(&logsSince, "since", "", "from date (YYYY-MM-DD)")
	f.StringVar(&logsUntil, "until", "", "to date, inclusive (YYYY-MM-DD)")
	f.IntVar(&logsPage, "page", 1, "page number")
	f.BoolVar(&logsJSON, "json", false, "output as JSON")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// --- Theme ---

var themeCmd = &cobra.Command{
	Use:   "theme [dark|light|system]",
	Short: "Show or set the display theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			t, err := rt.state.Theme()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		}
		t, err := state.ParseTheme(args[0])
		if err != nil {
			return err
		}
		if err := rt.state.SetTheme(t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "theme set to %s\n", t)
		return nil
	},
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := rt.cfg
		dialects := make([]string, 0, len(c.EnabledDialects))
		for _, d := range c.EnabledDialects {
			dialects = append(dialects, string(d))
		}
		resolved := map[string]any{
			config.KeyAPIURL:   c.APIURL,
			config.KeyTimeout:  c.Timeout.String(),
			config.KeyStateDir: c.StateDir,
			"config_dir":       c.ConfigDir,
			"expiry": map[string]string{
				"check_interval": c.ExpiryInterval.String(),
				"warn_before":    c.ExpiryWarnBefore.String(),
			},
			"convert":  map[string]string{"min_duration": c.ConvertMinDuration.String()},
			"dialects": map[string][]string{"enabled": dialects},
			"logs":     map[string]int{"page_size": c.LogsPageSize},
			"log": map[string]string{
				"level": c.LogLevel,
				"sink":  c.LogSink,
				"file":  c.LogFile,
			},
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(resolved)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sqlshift %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

