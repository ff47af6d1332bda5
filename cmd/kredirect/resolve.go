package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kredirect/internal/kredirect"
)

type resolved struct {
	Slot    string `json:"slot"`
	Via     string `json:"via,omitempty"`
	Version string `json:"version,omitempty"`
	Locator string `json:"locator,omitempty"`
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Fetch the feeds once and print where each redirect would point",
		Args:  cobra.NoArgs,
		RunE:  runResolve,
	}
	cmd.Flags().StringP("output", "o", "table", "output format (table, json)")
	return cmd
}

func runResolve(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("invalid output format: %s", output)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := kredirect.NewService(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	defer svc.Close()

	results, err := resolveAll(cmd.Context(), svc)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	renderTable(cmd.OutOrStdout(), results)
	return nil
}

type slotQuery func(context.Context) (string, *kredirect.ReleaseRecord, bool)

func fixedSlot(slot string, get func(context.Context) (*kredirect.ReleaseRecord, bool)) slotQuery {
	return func(ctx context.Context) (string, *kredirect.ReleaseRecord, bool) {
		rec, ok := get(ctx)
		return slot, rec, ok
	}
}

// resolveAll queries every slot concurrently, the same way the routes resolve
// them. The kernel slots share one cache, so they coalesce into a single feed
// fetch.
func resolveAll(ctx context.Context, svc *kredirect.Service) ([]resolved, error) {
	queries := []struct {
		slot string
		get  slotQuery
	}{
		{"mainline", svc.MainlineRedirect},
		{"stable", fixedSlot("stable", svc.Stable)},
		{"next", fixedSlot("next", svc.Next)},
		{"zfs-stable", fixedSlot("zfs-stable", svc.ZFSStable)},
	}

	results := make([]resolved, len(queries))
	eg, egctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			res := resolved{Slot: q.slot}
			if via, rec, ok := q.get(egctx); ok {
				if via != q.slot {
					res.Via = via
				}
				res.Locator = rec.Locator
				if rec.Version != nil {
					res.Version = rec.Version.String()
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderTable(w io.Writer, results []resolved) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Slot", "Via", "Version", "Locator"})
	for _, r := range results {
		locator := r.Locator
		if locator == "" {
			locator = "not available"
		}
		t.AppendRow(table.Row{r.Slot, r.Via, r.Version, locator})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
