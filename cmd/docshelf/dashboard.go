package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/internal/metrics"
	"github.com/docshelf/docshelf/pkg/query"
	"github.com/docshelf/docshelf/pkg/store"
	"github.com/docshelf/docshelf/pkg/view"
)

// dashboardKinds are the cache kinds the dashboard renders.
var dashboardKinds = map[query.Kind]bool{
	store.KindDocuments:   true,
	store.KindCollections: true,
	store.KindStats:       true,
}

func newDashboardCmd(c *cli) *cobra.Command {
	var (
		search      string
		collection  string
		watch       time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show documents, collections and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			if err := c.requireSession(ctx); err != nil {
				return err
			}

			d := c.app.Dashboard()
			d.SetSearch(search)
			d.SelectCollection(collection)

			v := d.Load(ctx)
			if watch <= 0 {
				if err := c.renderDashboard(cmd.OutOrStdout(), v, false); err != nil {
					return err
				}
				return v.Err
			}

			if metricsAddr == "" {
				metricsAddr = c.app.Config.MetricsAddr
			}
			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr)
				defer stop()
			}
			return c.watchDashboard(ctx, cmd.OutOrStdout(), d, v, watch)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Search documents")
	cmd.Flags().StringVar(&collection, "collection", "", "Only documents of this collection")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Refresh interval, e.g. 30s (0 renders once)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")
	return cmd
}

func serveMetrics(addr string) (stop func()) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()
	return func() { srv.Close() }
}

// watchDashboard marks the dashboard reads stale once per interval and
// redraws from the cache whenever one of them settles.
func (c *cli) watchDashboard(ctx context.Context, w io.Writer, d *view.Dashboard, v view.DashboardView, every time.Duration) error {
	cache := c.app.Cache
	events := cache.Subscribe()
	defer cache.Unsubscribe(events)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	if err := c.renderDashboard(w, v, true); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := cache.Invalidate(
				query.ByKind(store.KindDocuments),
				query.ByKind(store.KindCollections),
				query.ByKind(store.KindStats),
			)
			logging.Debug("dashboard refresh",
				zap.Int("invalidated", n),
				zap.Int("subscribers", cache.Subscribers()),
				zap.Bool("online", c.app.Client.IsOnline()))
			d.Snapshot()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !dashboardKinds[ev.Key.Kind] {
				continue
			}
			if ev.Type != query.EventResolved && ev.Type != query.EventFailed {
				continue
			}
			if err := c.renderDashboard(w, d.Cached(), true); err != nil {
				return err
			}
		}
	}
}

func (c *cli) renderDashboard(w io.Writer, v view.DashboardView, redraw bool) error {
	if c.format == "json" {
		return outputJSON(w, v)
	}
	if redraw && writerIsTerminal(w) {
		fmt.Fprint(w, "\033[H\033[2J")
	}

	status := "online"
	if !c.app.Client.IsOnline() {
		status = "offline"
	}
	fmt.Fprintf(w, "docshelf  %s  (%s)\n", c.app.Client.BaseURL(), status)
	if v.Search != "" || v.SelectedCollection != "" {
		fmt.Fprintf(w, "search: %q  collection: %s\n", v.Search, orDash(v.SelectedCollection))
	}
	if v.Err != nil {
		fmt.Fprintf(w, "error: %v\n", v.Err)
	}

	st := table.NewWriter()
	st.SetOutputMirror(w)
	st.SetStyle(table.StyleLight)
	statsRows(st, v.Stats)
	st.Render()

	ct := table.NewWriter()
	ct.SetOutputMirror(w)
	ct.SetStyle(table.StyleLight)
	ct.AppendHeader(table.Row{"Collection", "Documents"})
	for _, col := range v.Collections {
		ct.AppendRow(table.Row{col.Name, col.Count})
	}
	if len(v.Collections) == 0 {
		ct.AppendRow(table.Row{loadingOr(v.IsLoadingCollections, "no collections"), ""})
	}
	ct.Render()

	dt := table.NewWriter()
	dt.SetOutputMirror(w)
	dt.SetStyle(table.StyleLight)
	dt.AppendHeader(table.Row{"Title", "Size", "Status", "Collection", "Modified"})
	width := titleWidth()
	for _, doc := range v.Documents {
		dt.AppendRow(table.Row{truncate(doc.Title, width), doc.Size, doc.Status.Text, doc.Collection, doc.LastModified})
	}
	if len(v.Documents) == 0 {
		dt.AppendRow(table.Row{loadingOr(v.IsLoadingDocuments, "no documents"), "", "", "", ""})
	}
	dt.Render()
	return nil
}

func loadingOr(loading bool, empty string) string {
	if loading {
		return "loading..."
	}
	return empty
}
