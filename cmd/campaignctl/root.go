package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samvad-hq/campaign-desk/internal/campaigns"
	"github.com/samvad-hq/campaign-desk/internal/config"
	"github.com/samvad-hq/campaign-desk/internal/logger"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
	"github.com/spf13/cobra"
)

// cli carries the state shared by every subcommand.
type cli struct {
	baseURL    string
	token      string
	basePath   string
	jsonOutput bool

	out    io.Writer
	errOut io.Writer

	api *httpclient.Adapter
	svc *campaigns.Service
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "campaignctl",
		Short: "Manage campaigns on a campaign-desk backend",
		Long: `campaignctl talks to a campaign backend through the same request adapter
the desk uses: every call resolves to a success or a classified failure.

Connection settings come from API_BASE_URL / API_TOKEN (or configs/.env) and
can be overridden with --base-url and --token.`,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.baseURL, "base-url", "", "backend base URL (overrides api_base_url)")
	root.PersistentFlags().StringVar(&c.token, "token", "", "access token (overrides api_token)")
	root.PersistentFlags().StringVar(&c.basePath, "path", campaigns.DefaultBasePath, "campaign collection path")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		c.listCmd(),
		c.getCmd(),
		c.createCmd(),
		c.updateCmd(),
		c.patchCmd(),
		c.deleteCmd(),
		c.uploadCmd(),
		c.exportCmd(),
		c.urlCmd(),
		c.skewCmd(),
	)
	return root
}

func (c *cli) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.baseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.baseURL), "/")
		if err := config.ValidateBaseURL(cfg.APIBaseURL); err != nil {
			return fmt.Errorf("invalid --base-url: %w", err)
		}
	}
	if c.token != "" {
		cfg.APIToken = strings.TrimSpace(c.token)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.DebugObj("campaignctl configured", "config", cfg.Redacted())

	c.api = httpclient.New(httpclient.Config{BaseURL: cfg.APIBaseURL, Token: cfg.APIToken}, httpclient.WithLogger(log))
	c.svc = campaigns.NewService(c.api, nil, campaigns.WithBasePath(c.basePath), campaigns.WithLogger(log))
	return nil
}

// statusError is satisfied by every *httpclient.Failure[T].
type statusError interface {
	error
	StatusCode() int
}

// execute runs root and renders a failure in red. It returns the exit code.
func execute(root *cobra.Command) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	renderError(root.ErrOrStderr(), err)
	return 1
}

func renderError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var se statusError
	if errors.As(err, &se) && se.StatusCode() != 0 {
		red.Fprintf(w, "error (HTTP %d): %s\n", se.StatusCode(), se.Error())
		return
	}
	red.Fprintf(w, "error: %s\n", err.Error())
}
