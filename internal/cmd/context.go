package cmd

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/config"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/fetch"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

// CommandContext holds the resolved flags and configuration of one
// invocation.
type CommandContext struct {
	Config      *config.Config
	ConfigPath  string
	Format      string
	NoColor     bool
	Verbose     bool
	MetricsFile string
	MetricsAddr string
	Logger      *log.Logger

	out io.Writer
}

// NewCommandContext reads the persistent flags and loads the
// configuration, with flags taking precedence over file and environment.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, err
	}
	metricsFile, err := flags.GetString("metrics-file")
	if err != nil {
		return nil, err
	}
	metricsAddr, err := flags.GetString("metrics-addr")
	if err != nil {
		return nil, err
	}

	v := config.New()
	for key, flag := range map[string]string{
		"log.level":       "log-level",
		"output.format":   "format",
		"output.no_color": "no-color",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.Log.Level),
		Format:    log.ParseFormat(cfg.Log.Format),
		Output:    cmd.ErrOrStderr(),
		Component: "tasksync",
	})
	log.SetDefaultLogger(logger)

	return &CommandContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Format:      cfg.Output.Format,
		NoColor:     cfg.Output.NoColor,
		Verbose:     verbose,
		MetricsFile: metricsFile,
		MetricsAddr: metricsAddr,
		Logger:      logger,
		out:         cmd.OutOrStdout(),
	}, nil
}

// Output writes data in the selected format.
func (c *CommandContext) Output(data any) error {
	f, err := ux.NewFormatter(c.Format, &ux.FormatterOptions{Writer: c.out, NoColor: c.NoColor})
	if err != nil {
		return err
	}
	return f.Format(data)
}

// Styles returns the styles for direct text output.
func (c *CommandContext) Styles() ux.Styles {
	return ux.StylesFor(c.NoColor)
}

// Text reports whether output is for a human.
func (c *CommandContext) Text() bool {
	return c.Format == "" || c.Format == "text"
}

// writeMetrics dumps the registry when --metrics-file is set.
func (c *CommandContext) writeMetrics(reg *prometheus.Registry) {
	if c.MetricsFile == "" || reg == nil {
		return
	}
	if err := prometheus.WriteToTextfile(c.MetricsFile, reg); err != nil {
		c.Logger.WithError(err).Warn("failed to write metrics", "path", c.MetricsFile)
	}
}

// serveMetrics exposes reg on --metrics-addr until the returned function
// is called.
func (c *CommandContext) serveMetrics(reg *prometheus.Registry) (stop func(), err error) {
	if c.MetricsAddr == "" || reg == nil {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", c.MetricsAddr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.WithError(err).Warn("metrics server stopped")
		}
	}()
	c.Logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// withApp runs fn with a fully wired App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(cc *CommandContext, a *app.App) error) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, err := app.New(cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	stop, err := cc.serveMetrics(a.Registry)
	if err != nil {
		a.Close()
		return err
	}
	defer func() {
		stop()
		a.Close()
		cc.writeMetrics(a.Registry)
	}()
	return fn(cc, a)
}

// load runs one fetch for a view. A failed fetch becomes a data error
// carrying the fetch's message.
func load[T any](ctx context.Context, a *app.App, name string, fn fetch.Func[T]) (T, error) {
	st := app.Fetch(a, name, fn).Load(ctx)
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if st.Err != "" {
		return st.Data, errors.New(errors.ErrCodeDataQueryFailed, st.Err)
	}
	return st.Data, nil
}
