package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/samvad-hq/campaign-desk/internal/campaigns"
	"github.com/samvad-hq/campaign-desk/internal/domain"
)

type pageView struct {
	Campaigns []domain.Campaign `json:"campaigns"`
	Total     *int64            `json:"total,omitempty"`
	Skipped   *int64            `json:"skipped,omitempty"`
	NextLink  string            `json:"next_link,omitempty"`
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printPage(st campaigns.State) error {
	if c.jsonOutput {
		return c.printJSON(pageView{
			Campaigns: st.Campaigns,
			Total:     st.Total,
			Skipped:   st.Skipped,
			NextLink:  st.NextLink,
		})
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tLANDING URL")
	for _, camp := range st.Campaigns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", camp.ID, camp.Name, camp.Status, camp.LandingURL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if st.Total != nil {
		skipped := int64(0)
		if st.Skipped != nil {
			skipped = *st.Skipped
		}
		fmt.Fprintf(c.out, "\nshowing %d-%d of %d\n", skipped+1, skipped+int64(len(st.Campaigns)), *st.Total)
	}
	if st.NextLink != "" {
		fmt.Fprintf(c.out, "next: %s\n", st.NextLink)
	}
	return nil
}

func (c *cli) printCampaign(camp domain.Campaign) error {
	if c.jsonOutput {
		return c.printJSON(camp)
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", camp.ID)
	fmt.Fprintf(tw, "name:\t%s\n", camp.Name)
	fmt.Fprintf(tw, "status:\t%s\n", camp.Status)
	if camp.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", camp.Description)
	}
	if camp.LandingURL != "" {
		fmt.Fprintf(tw, "landing url:\t%s\n", camp.LandingURL)
	}
	if !camp.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "updated:\t%s\n", camp.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return tw.Flush()
}

func (c *cli) success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(c.out, format, args...)
}
