package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandline/internal/config"
	"demandline/internal/datemath"
	"demandline/internal/db"
	"demandline/internal/engine"
	"demandline/internal/migrate"
	"demandline/internal/repo"
	"demandline/internal/server"
	"demandline/internal/stage"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Demandline CLI",
	Long: `Demandline tracks procurement demands through a fixed 26-stage lifecycle.
Core concepts:
- Workspace: your .demandline directory holding the database; display geometry lives in demandline.yml.
- Demand: a tracked item with a start date and a duration in months; its end date is always derived.
- Stages: the fixed ordered lifecycle; stages are recorded strictly in sequence starting at stage 0.
- Stage period: the recorded [start, end] interval a demand spent in one stage; dates can be corrected later.
- Progress bar: a synthetic full-duration period, split at the current stage's end date when rendering.
- Timeline: the Gantt render model, view with 'dl timeline' or GET /timeline.
- Event log: diary of changes, view with 'dl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEMANDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(demandCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(weeklyCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func demandCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "demand", Short: "Manage demands"}
	cmd.AddCommand(demandCreateCmd())
	cmd.AddCommand(demandListCmd())
	cmd.AddCommand(demandShowCmd())
	cmd.AddCommand(demandUpdateCmd())
	cmd.AddCommand(demandDeleteCmd())
	return cmd
}

type demandFlags struct {
	name, externalID, fileType, fileSubtype, fileDetail, amount, ioName, startDate string
	durationMonths                                                                 int
}

func (f *demandFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "demand name")
	cmd.Flags().StringVar(&f.externalID, "external-id", "", "external demand id")
	cmd.Flags().StringVar(&f.fileType, "file-type", "", "file type (GEM, LPC, CASh)")
	cmd.Flags().StringVar(&f.fileSubtype, "file-subtype", "", "file subtype (Project, Build up)")
	cmd.Flags().StringVar(&f.fileDetail, "file-detail", "", "file detail (required for Project subtype)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "demand amount")
	cmd.Flags().StringVar(&f.ioName, "io-name", "", "IO name")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.durationMonths, "duration-months", 0, "duration in months")
}

func (f *demandFlags) options(cmd *cobra.Command) (engine.DemandOptions, error) {
	opts := engine.DemandOptions{
		Name:        f.name,
		ExternalID:  f.externalID,
		FileType:    f.fileType,
		FileSubtype: f.fileSubtype,
		FileDetail:  f.fileDetail,
		Amount:      f.amount,
		IOName:      f.ioName,
		ActorID:     viper.GetString("actor-id"),
	}
	if f.startDate != "" {
		t, err := datemath.Parse(f.startDate)
		if err != nil {
			return opts, fmt.Errorf("--start-date: %w", err)
		}
		opts.StartDate = &t
	}
	if cmd.Flags().Changed("duration-months") {
		opts.DurationMonths = &f.durationMonths
	}
	return opts, nil
}

func demandCreateCmd() *cobra.Command {
	var flags demandFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := flags.options(cmd)
				if err != nil {
					return err
				}
				d, err := e.CreateDemand(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("external-id")
	_ = cmd.MarkFlagRequired("file-type")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("io-name")
	return cmd
}

func demandListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDemands(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "External ID", "Type", "Amount", "Start", "End", "Months"})
				for _, d := range items {
					start, end, months := "", "", ""
					if d.StartDate != nil {
						start = datemath.Format(*d.StartDate)
					}
					if e := d.EndDate(); e != nil {
						end = datemath.Format(*e)
					}
					if d.DurationMonths != nil {
						months = fmt.Sprintf("%d", *d.DurationMonths)
					}
					tw.AppendRow(table.Row{d.ID, d.Name, d.ExternalID, d.FileType, d.Amount.String(), start, end, months})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func demandShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a demand with its stage periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := r.GetDemand(ctx, args[0])
				if err != nil {
					return err
				}
				periods, err := r.ListPeriods(ctx, d.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"demand": d, "periods": periods})
			})
		},
	}
	return cmd
}

func demandUpdateCmd() *cobra.Command {
	var flags demandFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a demand and resync its progress period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := flags.options(cmd)
				if err != nil {
					return err
				}
				opts.ID = args[0]
				d, err := e.UpdateDemand(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func demandDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a demand and all its stage periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteDemand(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func stageCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stage", Short: "Record and correct lifecycle stages"}
	cmd.AddCommand(stageRecordCmd())
	cmd.AddCommand(stageListCmd())
	cmd.AddCommand(stageEditDatesCmd())
	return cmd
}

func stageRecordCmd() *cobra.Command {
	var demandID, stageKey, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the demand's next lifecycle stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, err := datemath.Parse(startDate)
				if err != nil {
					return fmt.Errorf("--start-date: %w", err)
				}
				end, err := datemath.Parse(endDate)
				if err != nil {
					return fmt.Errorf("--end-date: %w", err)
				}
				p, err := e.RecordStage(ctx, demandID, stageKey, start, end, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&demandID, "demand", "", "demand id")
	cmd.Flags().StringVar(&stageKey, "stage", "", "stage key")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("demand")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	return cmd
}

func stageListCmd() *cobra.Command {
	var demandID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a demand's stage periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				periods, err := r.ListPeriods(ctx, demandID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(periods)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Stage", "Start", "End", "Days"})
				for _, p := range periods {
					tw.AppendRow(table.Row{p.ID, p.Kind, p.Stage, datemath.Format(p.StartDate), datemath.Format(p.EndDate), p.DurationDays()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&demandID, "demand", "", "demand id")
	_ = cmd.MarkFlagRequired("demand")
	return cmd
}

func stageEditDatesCmd() *cobra.Command {
	var periodID, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "edit-dates",
		Short: "Correct a stage period's dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, err := datemath.Parse(startDate)
				if err != nil {
					return fmt.Errorf("--start-date: %w", err)
				}
				end, err := datemath.Parse(endDate)
				if err != nil {
					return fmt.Errorf("--end-date: %w", err)
				}
				p, err := e.EditPeriodDates(ctx, periodID, start, end, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "period id")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	return cmd
}

func weeklyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "weekly", Short: "Weekly-report field updates"}
	cmd.AddCommand(weeklyDatesCmd())
	cmd.AddCommand(weeklyStageCmd())
	return cmd
}

func weeklyDatesCmd() *cobra.Command {
	var demandID, startDate, endDate string
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Update a demand's weekly dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, err := datemath.Parse(startDate)
				if err != nil {
					return fmt.Errorf("--start-date: %w", err)
				}
				end, err := datemath.Parse(endDate)
				if err != nil {
					return fmt.Errorf("--end-date: %w", err)
				}
				return e.UpdateWeeklyDates(ctx, demandID, start, end, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&demandID, "demand", "", "demand id")
	cmd.Flags().StringVar(&startDate, "start-date", "", "weekly start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "weekly end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("demand")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	return cmd
}

func weeklyStageCmd() *cobra.Command {
	var demandID, stageKey string
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Update a demand's weekly stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.UpdateWeeklyStage(ctx, demandID, stageKey, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&demandID, "demand", "", "demand id")
	cmd.Flags().StringVar(&stageKey, "stage", "", "stage key")
	_ = cmd.MarkFlagRequired("demand")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func timelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Render the Gantt model for all demands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				model, err := e.Timeline(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(model)
				}
				if model.Degenerate {
					fmt.Println("timeline span collapsed; no geometry to render")
					return nil
				}
				fmt.Printf("Timeline %s .. %s\n", model.GlobalStart, model.GlobalEnd)

				mt := table.NewWriter()
				mt.SetOutputMirror(os.Stdout)
				mt.AppendHeader(table.Row{"Marker", "Label", "Date", "Position %"})
				for _, mk := range model.Years {
					mt.AppendRow(table.Row{"year", mk.Label, "", fmt.Sprintf("%.2f", mk.Position)})
				}
				for _, mk := range model.Quarters {
					mt.AppendRow(table.Row{"quarter", mk.Label, mk.Date, fmt.Sprintf("%.2f", mk.Position)})
				}
				mt.Render()

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Demand", "Start", "End", "Days", "Start %", "Width %"})
				for _, row := range model.Demands {
					tw.AppendRow(table.Row{
						row.Demand.Name, row.Position.StartDate, row.Position.EndDate, row.Position.DurationDays,
						fmt.Sprintf("%.2f", row.Position.StartPercent), fmt.Sprintf("%.2f", row.Position.WidthPercent),
					})
				}
				tw.Render()

				for _, row := range model.Demands {
					fmt.Printf("\n%s\n", row.Demand.Name)
					bt := table.NewWriter()
					bt.SetOutputMirror(os.Stdout)
					bt.AppendHeader(table.Row{"Bar", "Stage", "Start", "End", "Days", "Start %", "Width %"})
					for _, b := range row.Bars {
						label := b.Label
						if b.Ordinal != nil {
							label = fmt.Sprintf("%d. %s", *b.Ordinal, b.Label)
						}
						bt.AppendRow(table.Row{
							string(b.Kind) + segmentSuffix(string(b.Segment)), label, b.StartDate, b.EndDate, b.DurationDays,
							fmt.Sprintf("%.2f", b.StartPercent), fmt.Sprintf("%.2f", b.WidthPercent),
						})
					}
					bt.Render()

					dt := table.NewWriter()
					dt.SetOutputMirror(os.Stdout)
					dt.AppendHeader(table.Row{"#", "Days", "Color"})
					for _, box := range row.DetailBoxes {
						dt.AppendRow(table.Row{box.Ordinal, box.DurationDays, box.Color})
					}
					dt.Render()
				}
				return nil
			})
		},
	}
	return cmd
}

func segmentSuffix(segment string) string {
	if segment == "" {
		return ""
	}
	return "/" + segment
}

func stagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show the ordered stage catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				return printJSON(stage.All())
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Key", "Label", "Color"})
			for _, s := range stage.All() {
				tw.AppendRow(table.Row{s.Ordinal, s.Key, s.Label, s.Color})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Demandline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
