package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jevenson76/atl-dashboards/listapi"
)

type globalOptions struct {
	configPath string
	siteURL    string
	proxyURL   string
	useProxy   string
	token      string
	timeout    time.Duration
	asJSON     bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "listctl",
		Short: "Diagnostics for the ATL list service",
		Long: `listctl talks to the list service the same way the board API does.

Settings come from the YAML file named by --config (or LISTAPI_CONFIG),
then LIST_* environment variables, then flags.`,
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", os.Getenv("LISTAPI_CONFIG"), "list service YAML config")
	f.StringVar(&opts.siteURL, "site-url", "", "site address reported by the hosting page")
	f.StringVar(&opts.proxyURL, "proxy-url", "", "query proxy address")
	f.StringVar(&opts.useProxy, "use-proxy", "", "force the transport: true, false or auto")
	f.StringVar(&opts.token, "token", os.Getenv("LISTAPI_ACCESS_TOKEN"), "bearer token sent to the list service")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-command timeout")
	f.BoolVar(&opts.asJSON, "json", false, "print JSON")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(statusCmd(opts))
	root.AddCommand(testConnectionCmd(opts))
	root.AddCommand(queryCmd(opts))
	root.AddCommand(tasksCmd(opts))
	root.AddCommand(salesCmd(opts))
	root.AddCommand(itemCmd(opts))
	root.AddCommand(freshnessCmd(opts))
	root.AddCommand(urlCmd(opts))
	root.AddCommand(getCmd(opts))
	root.AddCommand(boardCmd(opts))
	return root
}

func (o *globalOptions) config() (listapi.Config, error) {
	cfg, err := listapi.LoadConfig(o.configPath)
	if err != nil {
		return listapi.Config{}, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return listapi.Config{}, err
	}
	if o.siteURL != "" {
		cfg.SiteURL = o.siteURL
	}
	switch v := strings.TrimSpace(o.useProxy); {
	case v == "" || strings.EqualFold(v, "auto"):
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return listapi.Config{}, fmt.Errorf("invalid --use-proxy %q", v)
		}
		cfg.UseProxy = &b
	}
	return cfg, nil
}

func (o *globalOptions) logger(errOut io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(errOut)
	if o.verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

func (o *globalOptions) client(cmd *cobra.Command) (*listapi.Client, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	host, err := listapi.HostFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	var clientOpts []listapi.Option
	if o.token != "" {
		clientOpts = append(clientOpts, listapi.WithHeader("Authorization", "Bearer "+o.token))
	}
	client := listapi.NewClient(cfg, host, listapi.NewState(), o.logger(cmd.ErrOrStderr()), clientOpts...)
	if o.proxyURL != "" {
		client.SetProxyURL(o.proxyURL)
	}
	return client, nil
}

func (o *globalOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
