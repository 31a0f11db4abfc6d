package listapi

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// TasksDescriptor fills the task preset's defaults into d. Fields d already
// sets are kept.
func (c *Client) TasksDescriptor(d Descriptor) Descriptor {
	return applyPreset(d, c.cfg.Lists.Tasks, c.cfg.Presets.Tasks)
}

// SalesDescriptor fills the sales-metrics preset's defaults into d.
func (c *Client) SalesDescriptor(d Descriptor) Descriptor {
	return applyPreset(d, c.cfg.Lists.SalesData, c.cfg.Presets.SalesData)
}

func applyPreset(d Descriptor, list string, p Preset) Descriptor {
	d.List = list
	if len(d.Select) == 0 {
		d.Select = append([]string(nil), p.Select...)
	}
	if d.OrderBy == "" {
		d.OrderBy = p.OrderBy
	}
	return d
}

// GetTasks reads the project-plan list sorted by due date.
func (c *Client) GetTasks(ctx context.Context, d Descriptor) ([]Record, error) {
	return c.FetchCollection(ctx, c.TasksDescriptor(d))
}

// GetSalesData reads the daily sales metrics, newest first.
func (c *Client) GetSalesData(ctx context.Context, d Descriptor) ([]Record, error) {
	return c.FetchCollection(ctx, c.SalesDescriptor(d))
}

// ListInfo is list metadata.
type ListInfo struct {
	Title                string `json:"Title"`
	ItemCount            int    `json:"ItemCount"`
	LastItemModifiedDate string `json:"LastItemModifiedDate"`
	Description          string `json:"Description"`
}

// WebInfo describes the site.
type WebInfo struct {
	Title       string `json:"Title"`
	URL         string `json:"Url"`
	Description string `json:"Description"`
	Created     string `json:"Created"`
}

// ListInfo reads metadata for a list. It always goes direct.
func (c *Client) ListInfo(ctx context.Context, list string) (ListInfo, error) {
	path := listPath(c.cfg.APIRoot, list) + "?$select=Title,ItemCount,LastItemModifiedDate,Description"
	var info ListInfo
	if err := c.getJSON(ctx, list, path, &info, nil); err != nil {
		return ListInfo{}, err
	}
	return info, nil
}

// WebInfo reads the site's title and address. It always goes direct.
func (c *Client) WebInfo(ctx context.Context) (WebInfo, error) {
	path := c.cfg.APIRoot + "?$select=Title,Url,Description,Created"
	var info WebInfo
	if err := c.getJSON(ctx, "", path, &info, nil); err != nil {
		return WebInfo{}, err
	}
	return info, nil
}

// DataFreshness returns when an item of list was last modified.
func (c *Client) DataFreshness(ctx context.Context, list string) (time.Time, error) {
	info, err := c.ListInfo(ctx, list)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339, info.LastItemModifiedDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse LastItemModifiedDate %q: %w", info.LastItemModifiedDate, err)
	}
	return ts, nil
}

// ConnectionReport is the outcome of TestConnection.
type ConnectionReport struct {
	SiteURL       string    `json:"siteUrl"`
	WebInfo       *WebInfo  `json:"webInfo"`
	TasksListInfo *ListInfo `json:"tasksListInfo"`
	Errors        []string  `json:"errors"`
}

// TestConnection resolves the site, then reads the site info and the task
// list's metadata. Failures are collected into the report, not returned.
func (c *Client) TestConnection(ctx context.Context) ConnectionReport {
	report := ConnectionReport{SiteURL: c.SiteURL(), Errors: []string{}}

	web, err := c.WebInfo(ctx)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.WebInfo = &web

	info, err := c.ListInfo(ctx, c.cfg.Lists.Tasks)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.TasksListInfo = &info
	return report
}

// MarshalStatus renders a Status as indented JSON for diagnostics output.
func MarshalStatus(st Status) ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(st, "", "  ")
}
