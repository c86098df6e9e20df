// Command authclient drives a session from the terminal: log in, answer OTP
// prompts, refresh, inspect status and log out. Session state persists in a
// local SQLite file (or Redis) between invocations.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/biometric"
	"github.com/MrEthical07/goAuthClient/metrics/export/prometheus"
	"github.com/MrEthical07/goAuthClient/middleware"
	"github.com/MrEthical07/goAuthClient/otp"
	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/storage/sqlite"
	"github.com/MrEthical07/goAuthClient/transport/httpapi"
	"github.com/joho/godotenv"
)

const usage = `usage: authclient [flags] <command> [args]

commands:
  login <phone> <password>
  register <phone> <password> [name]
  verify <flow> <phone> <code>
  resend <flow> <phone>
  status
  refresh
  profile
  logout
  biometric-status <phone>
  biometric-enroll <password>
  biometric-login <phone>
  serve                         expose /status and /metrics on -listen
  shell                         read commands from stdin

flows: register, new-device, forgot-password, generic
`

type options struct {
	api      string
	store    string
	dbPath   string
	redisURL string
	envFile  string
	listen   string
	audit    bool
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("authclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage); fs.PrintDefaults() }

	var opts options
	fs.StringVar(&opts.api, "api", "", "backend base URL; GOAUTHCLIENT_API_URL if empty")
	fs.StringVar(&opts.store, "store", "sqlite", "session storage: sqlite, redis or memory")
	fs.StringVar(&opts.dbPath, "db", "authclient.db", "sqlite database path")
	fs.StringVar(&opts.redisURL, "redis-url", "", "redis URL; REDIS_URL if empty")
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file loaded before configuration")
	fs.StringVar(&opts.listen, "listen", "127.0.0.1:9464", "address for serve")
	fs.BoolVar(&opts.audit, "audit", false, "write audit events as JSON lines to stderr")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", opts.envFile, err)
		}
	}
	if opts.api == "" {
		opts.api = os.Getenv("GOAUTHCLIENT_API_URL")
	}
	if opts.api == "" {
		return errors.New("backend URL required: pass -api or set GOAUTHCLIENT_API_URL")
	}

	app, err := newApp(ctx, opts, stdout, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "shell":
		return app.shell(ctx, stdin)
	case "serve":
		return app.serve(ctx)
	default:
		return app.dispatch(ctx, cmd, rest)
	}
}

type app struct {
	opts   options
	engine *goAuthClient.Engine
	out    io.Writer
	closer func()
}

func newApp(ctx context.Context, opts options, stdout, stderr io.Writer) (*app, error) {
	cfg, err := goAuthClient.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	api := httpapi.New(opts.api)
	api.DeviceID = cfg.Device.ID

	builder := goAuthClient.New().
		WithConfig(cfg).
		WithTransport(api).
		WithDeviceRegistrar(api).
		WithKeyStore(biometric.NewSoftwareKeyStore()).
		WithLogger(logger)
	if opts.audit {
		builder = builder.WithAuditSink(goAuthClient.NewJSONWriterSink(stderr))
	}

	closers := []func(){}
	switch opts.store {
	case "sqlite":
		db, err := sqlite.Open(opts.dbPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		builder = builder.WithStorage(db)
	case "redis":
		url := opts.redisURL
		if url == "" {
			url = os.Getenv("REDIS_URL")
		}
		kv, err := storage.NewRedisFromURL(ctx, url, cfg.Storage.RedisPrefix)
		if err != nil {
			return nil, err
		}
		builder = builder.WithStorage(kv)
	case "memory":
	default:
		return nil, fmt.Errorf("unknown store %q", opts.store)
	}

	engine, err := builder.Build()
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, fmt.Errorf("build engine: %w", err)
	}
	api.Tokens = func() string { return engine.Snapshot().AccessToken }

	if err := engine.Init(ctx); err != nil {
		engine.Close()
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	return &app{
		opts:   opts,
		engine: engine,
		out:    stdout,
		closer: func() {
			engine.Close()
			for _, c := range closers {
				c()
			}
		},
	}, nil
}

func (a *app) close() { a.closer() }

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		if err := need(args, 2, "login <phone> <password>"); err != nil {
			return err
		}
		res, err := a.engine.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		a.printLogin(res)
	case "register":
		if err := need(args, 2, "register <phone> <password> [name]"); err != nil {
			return err
		}
		in := goAuthClient.RegisterInput{Phone: args[0], Password: args[1]}
		if len(args) > 2 {
			in.Name = strings.Join(args[2:], " ")
		}
		if err := a.engine.Register(ctx, in); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "registered; verify with: verify register", args[0], "<code>")
	case "verify":
		if err := need(args, 3, "verify <flow> <phone> <code>"); err != nil {
			return err
		}
		kind, err := otp.ParseFlowKind(args[0])
		if err != nil {
			return err
		}
		res, err := a.engine.VerifyOTP(ctx, kind, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "verified %s\n", res.Kind)
		if res.ResetToken != "" {
			fmt.Fprintf(a.out, "reset token: %s\n", res.ResetToken)
		}
		if res.Replayed {
			fmt.Fprintf(a.out, "login replayed: %s\n", res.Classification)
		}
	case "resend":
		if err := need(args, 2, "resend <flow> <phone>"); err != nil {
			return err
		}
		kind, err := otp.ParseFlowKind(args[0])
		if err != nil {
			return err
		}
		if err := a.engine.ResendOTP(ctx, kind, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "code sent")
	case "status":
		a.printStatus(a.engine.Snapshot())
	case "refresh":
		if _, err := a.engine.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "tokens refreshed")
	case "profile":
		p, err := a.engine.Profile(ctx)
		if err != nil {
			return err
		}
		return writeJSON(a.out, p)
	case "logout":
		if err := a.engine.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "logged out")
	case "biometric-status":
		if err := need(args, 1, "biometric-status <phone>"); err != nil {
			return err
		}
		st, err := a.engine.BiometricStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(a.out, st)
	case "biometric-enroll":
		if err := need(args, 1, "biometric-enroll <password>"); err != nil {
			return err
		}
		if err := a.engine.EnrollBiometric(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "biometric login enabled")
	case "biometric-login":
		if err := need(args, 1, "biometric-login <phone>"); err != nil {
			return err
		}
		res, err := a.engine.BiometricLogin(ctx, args[0])
		if err != nil {
			return err
		}
		a.printLogin(res)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (a *app) shell(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := a.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return sc.Err()
}

func (a *app) serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewPrometheusExporter(a.engine).Handler())
	mux.Handle("/status", middleware.RequireSession(a.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, _ := middleware.SnapshotFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = writeJSON(w, statusView(snap))
	})))

	srv := &http.Server{Addr: a.opts.listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(a.out, "serving on %s\n", a.opts.listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *app) printLogin(res goAuthClient.LoginResult) {
	switch res.Classification {
	case goAuthClient.ClassificationAuthenticated:
		name := ""
		if res.User != nil {
			name = res.User.Name
		}
		fmt.Fprintf(a.out, "logged in %s\n", name)
	case goAuthClient.ClassificationNewDevice:
		fmt.Fprintf(a.out, "%s\nthen run: verify new-device <phone> <code>\n", res.Message)
	case goAuthClient.ClassificationUnverified:
		fmt.Fprintf(a.out, "%s\nthen run: verify register <phone> <code>\n", res.Message)
	default:
		fmt.Fprintln(a.out, "biometric prompt dismissed")
	}
}

type status struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Name          string `json:"name,omitempty"`
	Error         string `json:"error,omitempty"`
}

func statusView(snap goAuthClient.SessionSnapshot) status {
	st := status{
		State:         snap.State.String(),
		Authenticated: snap.IsAuthenticated,
		Error:         snap.Error,
	}
	if snap.User != nil {
		st.UserID = snap.User.ID
		st.Phone = snap.User.Phone
		st.Name = snap.User.Name
	}
	return st
}

func (a *app) printStatus(snap goAuthClient.SessionSnapshot) {
	_ = writeJSON(a.out, statusView(snap))
}

func need(args []string, n int, form string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", form)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
