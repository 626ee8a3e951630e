package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/campaign-desk/internal/campaigns"
	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/pkg/httpclient"
	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	var q campaigns.Query
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.svc.Refresh(cmd.Context(), q); err != nil {
				return err
			}
			return c.printPage(c.svc.Store().Snapshot())
		},
	}
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "number of campaigns to skip")
	cmd.Flags().IntVar(&q.Limit, "limit", campaigns.DefaultLimit, "page size")
	cmd.Flags().StringVar(&q.Search, "search", "", "free-text filter")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camp, err := c.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printCampaign(camp)
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	var in campaigns.Input
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			camp, err := c.svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printCampaign(camp)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "campaign name (required)")
	cmd.Flags().StringVar(&in.Status, "status", domain.StatusDraft, "draft, active, paused or archived")
	cmd.Flags().StringVar(&in.Description, "description", "", "free-text description")
	cmd.Flags().StringVar(&in.LandingURL, "landing-url", "", "landing page URL")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var name, status, description, landing string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a campaign, starting from its current server copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camp, err := c.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				camp.Name = name
			}
			if flags.Changed("status") {
				camp.Status = status
			}
			if flags.Changed("description") {
				camp.Description = description
			}
			if flags.Changed("landing-url") {
				camp.LandingURL = landing
			}

			updated, err := c.svc.Update(cmd.Context(), camp)
			if err != nil {
				return err
			}
			return c.printCampaign(updated)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&landing, "landing-url", "", "new landing page URL")
	return cmd
}

func (c *cli) patchCmd() *cobra.Command {
	var sets, removes []string
	var file string
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "Apply a JSON-Patch to a campaign",
		Long: `Apply RFC 6902 operations to a campaign. Operations come either from a
patch document (--file) or from --set /field=value and --remove /field flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := buildOps(file, sets, removes)
			if err != nil {
				return err
			}
			camp, err := c.svc.Patch(cmd.Context(), args[0], ops)
			if err != nil {
				return err
			}
			return c.printCampaign(camp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON-Patch document")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "replace a field, e.g. --set /status=active")
	cmd.Flags().StringArrayVar(&removes, "remove", nil, "remove a field, e.g. --remove /description")
	return cmd
}

func buildOps(file string, sets, removes []string) ([]httpclient.PatchOperation, error) {
	if file != "" {
		if len(sets) > 0 || len(removes) > 0 {
			return nil, fmt.Errorf("--file cannot be combined with --set or --remove")
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read patch file: %w", err)
		}
		return campaigns.ParseOps(raw)
	}

	ops := make([]httpclient.PatchOperation, 0, len(sets)+len(removes))
	for _, s := range sets {
		path, value, ok := strings.Cut(s, "=")
		if !ok || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("invalid --set %q (want /field=value)", s)
		}
		ops = append(ops, campaigns.ReplaceOp(path, value))
	}
	for _, path := range removes {
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("invalid --remove %q (want /field)", path)
		}
		ops = append(ops, campaigns.RemoveOp(path))
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no patch operations given")
	}
	return ops, nil
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.success("deleted campaign %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <id> <file>",
		Short: "Upload a creative for a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open creative: %w", err)
			}
			defer f.Close()

			cr, err := c.svc.UploadCreative(cmd.Context(), args[0], httpclient.File{
				Name:   filepath.Base(args[1]),
				Reader: f,
			})
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(cr)
			}
			c.success("uploaded %s as creative %s\n", cr.FileName, cr.ID)
			if cr.URL != "" {
				fmt.Fprintln(c.out, cr.URL)
			}
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the CSV export of all campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			csv, err := c.svc.Export(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := fmt.Fprint(c.out, csv)
				return err
			}
			if err := os.WriteFile(output, []byte(csv), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			c.success("wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *cli) urlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url [path]",
		Short: "Print a shareable URL (token as access_token)",
		Long: `Print the fully qualified URL for path with the access token attached.
Without a path the campaign export link is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(c.out, c.svc.ExportURL())
				return nil
			}
			fmt.Fprintln(c.out, c.api.ComposeURL(args[0]))
			return nil
		},
	}
}

func (c *cli) skewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skew",
		Short: "Measure the clock difference to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := httpclient.Get[[]domain.Campaign](cmd.Context(), c.api, c.svc.ListPath(campaigns.Query{Limit: 1}))
			if f, ok := out.(*httpclient.Failure[[]domain.Campaign]); ok && f.Status == nil {
				return f
			}
			if out.Meta().ClockSkew == nil {
				return fmt.Errorf("backend response carried no usable Date header")
			}
			skew := c.api.ClockSkew()
			if c.jsonOutput {
				return c.printJSON(map[string]any{"clock_skew_ms": skew.Milliseconds()})
			}
			fmt.Fprintf(c.out, "local clock is %s ahead of the server\n", skew)
			return nil
		},
	}
}
