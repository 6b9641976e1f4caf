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

	"tendertrack/internal/access"
	"tendertrack/internal/app"
	"tendertrack/internal/config"
	"tendertrack/internal/db"
	"tendertrack/internal/deadline"
	"tendertrack/internal/domain"
	"tendertrack/internal/engine"
	"tendertrack/internal/repo"
	"tendertrack/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ttrack",
	Short: "TenderTrack CLI",
	Long: `TenderTrack follows public investment projects and their tender packages.
- Workspace: the .tendertrack directory holding the SQLite database.
- Projects: investments with budget, schedule and progress.
- Tender packages: contracted work items attached to a project.
- Deadlines: end dates classified as on-time, warning (within 7 days) or overdue.
- Risk: overdue items, plus warning items whose progress lags the schedule.
- Accounts: admin, manager, editor and viewer roles gate every operation.
- Event log: audit diary of changes, view with 'ttrack log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TENDERTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier for the audit log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(tenderCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(deadlineCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// localPrincipal is the identity for direct CLI access to the workspace DB.
// Whoever can read the database file already has everything; the role gate
// only matters over HTTP.
func localPrincipal() *access.Principal {
	return &access.Principal{
		UserID:      viper.GetString("actor-id"),
		Role:        access.RoleAdmin,
		Permissions: []access.Permission{access.PermAll},
	}
}

func initCmd() *cobra.Command {
	var orgName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace with a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config %s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(orgName)), 0o644); err != nil {
				return err
			}
			if _, err := config.Load(workspace); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Initialized workspace %s\n", workspace)
				fmt.Printf("  config:   %s\n", path)
				fmt.Printf("  database: %s\n", db.Path(workspace))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "tendertrack", "organization name")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectDeadlineCmd())
	return prj
}

func projectFlags(cmd *cobra.Command, opts *engine.ProjectOptions) {
	cmd.Flags().StringVar(&opts.Code, "code", "", "project code")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Investor, "investor", "", "investor")
	cmd.Flags().StringVar(&opts.Type, "type", "", "type (infrastructure, technology, energy, healthcare, education)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (planning, active, completed, cancelled)")
	cmd.Flags().Int64Var(&opts.TotalBudget, "total-budget", 0, "total budget")
	cmd.Flags().Int64Var(&opts.DisbursedBudget, "disbursed-budget", 0, "disbursed budget")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end-date", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Progress, "progress", 0, "progress percent (0-100)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
}

func projectListCmd() *cobra.Command {
	var status, ptype, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx, localPrincipal(), repo.ProjectFilters{
					Status: status, Type: ptype, Search: search,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Type", "Status", "End date", "Progress"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Code, p.Name, p.Type, p.Status, p.EndDate, fmt.Sprintf("%d%%", p.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&ptype, "type", "", "type filter")
	cmd.Flags().StringVar(&search, "search", "", "match code or name")
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, localPrincipal(), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	projectFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var opts engine.ProjectOptions
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				current, err := e.GetProject(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				merged := mergeProjectOptions(cmd, current, opts)
				p, err := e.UpdateProject(ctx, localPrincipal(), args[0], merged)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	projectFlags(cmd, &opts)
	return cmd
}

// mergeProjectOptions keeps current values for flags the caller did not set,
// so a partial update does not blank the rest of the record.
func mergeProjectOptions(cmd *cobra.Command, current domain.Project, opts engine.ProjectOptions) engine.ProjectOptions {
	merged := engine.ProjectOptions{
		Code:            current.Code,
		Name:            current.Name,
		Investor:        current.Investor,
		Type:            current.Type,
		Status:          current.Status,
		TotalBudget:     current.TotalBudget,
		DisbursedBudget: current.DisbursedBudget,
		StartDate:       current.StartDate,
		EndDate:         current.EndDate,
		Progress:        current.Progress,
		Description:     current.Description,
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("code") {
		merged.Code = opts.Code
	}
	if changed("name") {
		merged.Name = opts.Name
	}
	if changed("investor") {
		merged.Investor = opts.Investor
	}
	if changed("type") {
		merged.Type = opts.Type
	}
	if changed("status") {
		merged.Status = opts.Status
	}
	if changed("total-budget") {
		merged.TotalBudget = opts.TotalBudget
	}
	if changed("disbursed-budget") {
		merged.DisbursedBudget = opts.DisbursedBudget
	}
	if changed("start-date") {
		merged.StartDate = opts.StartDate
	}
	if changed("end-date") {
		merged.EndDate = opts.EndDate
	}
	if changed("progress") {
		merged.Progress = opts.Progress
	}
	if changed("description") {
		merged.Description = opts.Description
	}
	return merged
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and its tender packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, localPrincipal(), args[0])
			})
		},
	}
	return cmd
}

func projectDeadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline <id>",
		Short: "Evaluate a project's deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, v, err := e.ProjectDeadline(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"project":  p,
					"deadline": v,
				})
			})
		},
	}
	return cmd
}

func tenderCmd() *cobra.Command {
	tnd := &cobra.Command{Use: "tender", Short: "Manage tender packages"}
	tnd.AddCommand(tenderListCmd())
	tnd.AddCommand(tenderCreateCmd())
	tnd.AddCommand(tenderShowCmd())
	tnd.AddCommand(tenderUpdateCmd())
	tnd.AddCommand(tenderDeleteCmd())
	tnd.AddCommand(tenderDeadlineCmd())
	return tnd
}

func tenderDeadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline <id>",
		Short: "Evaluate a tender package's deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, v, err := e.TenderDeadline(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"tender":   t,
					"deadline": v,
				})
			})
		},
	}
	return cmd
}

func tenderFlags(cmd *cobra.Command, opts *engine.TenderOptions) {
	cmd.Flags().StringVar(&opts.Code, "code", "", "tender code")
	cmd.Flags().StringVar(&opts.Name, "name", "", "tender name")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "owning project id")
	cmd.Flags().StringVar(&opts.Contractor, "contractor", "", "contractor")
	cmd.Flags().Int64Var(&opts.BidValue, "bid-value", 0, "bid value")
	cmd.Flags().Int64Var(&opts.ContractValue, "contract-value", 0, "contract value")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (planning, bidding, awarded, active, completed, cancelled)")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end-date", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Progress, "progress", 0, "progress percent (0-100)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
}

func tenderListCmd() *cobra.Command {
	var projectID, status, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tender packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTenders(ctx, localPrincipal(), repo.TenderFilters{
					ProjectID: projectID, Status: status, Search: search,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Project", "Contractor", "Status", "End date", "Progress"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Code, t.Name, t.ProjectID, t.Contractor, t.Status, t.EndDate, fmt.Sprintf("%d%%", t.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&search, "search", "", "match code or name")
	return cmd
}

func tenderCreateCmd() *cobra.Command {
	var opts engine.TenderOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tender package",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTender(ctx, localPrincipal(), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	tenderFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func tenderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a tender package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTender(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func tenderUpdateCmd() *cobra.Command {
	var opts engine.TenderOptions
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a tender package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				current, err := e.GetTender(ctx, localPrincipal(), args[0])
				if err != nil {
					return err
				}
				merged := mergeTenderOptions(cmd, current, opts)
				t, err := e.UpdateTender(ctx, localPrincipal(), args[0], merged)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	tenderFlags(cmd, &opts)
	return cmd
}

func mergeTenderOptions(cmd *cobra.Command, current domain.TenderPackage, opts engine.TenderOptions) engine.TenderOptions {
	merged := engine.TenderOptions{
		Code:          current.Code,
		Name:          current.Name,
		ProjectID:     current.ProjectID,
		Contractor:    current.Contractor,
		BidValue:      current.BidValue,
		ContractValue: current.ContractValue,
		Status:        current.Status,
		StartDate:     current.StartDate,
		EndDate:       current.EndDate,
		Progress:      current.Progress,
		Description:   current.Description,
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("code") {
		merged.Code = opts.Code
	}
	if changed("name") {
		merged.Name = opts.Name
	}
	if changed("project") {
		merged.ProjectID = opts.ProjectID
	}
	if changed("contractor") {
		merged.Contractor = opts.Contractor
	}
	if changed("bid-value") {
		merged.BidValue = opts.BidValue
	}
	if changed("contract-value") {
		merged.ContractValue = opts.ContractValue
	}
	if changed("status") {
		merged.Status = opts.Status
	}
	if changed("start-date") {
		merged.StartDate = opts.StartDate
	}
	if changed("end-date") {
		merged.EndDate = opts.EndDate
	}
	if changed("progress") {
		merged.Progress = opts.Progress
	}
	if changed("description") {
		merged.Description = opts.Description
	}
	return merged
}

func tenderDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tender package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTender(ctx, localPrincipal(), args[0])
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage accounts"}
	usr.AddCommand(userListCmd())
	usr.AddCommand(userCreateCmd())
	usr.AddCommand(userUpdateCmd())
	usr.AddCommand(userDeleteCmd())
	return usr
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListUsers(ctx, localPrincipal())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Name", "Role", "Active"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Username, u.Name, u.Role, u.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, localPrincipal(), opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Role, "role", "viewer", "role (admin, manager, editor, viewer)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var opts engine.UserOptions
	var deactivate, activate bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if activate {
				v := true
				opts.IsActive = &v
			}
			if deactivate {
				v := false
				opts.IsActive = &v
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.UpdateUser(ctx, localPrincipal(), args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.Password, "password", "", "new password")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role (admin, manager, editor, viewer)")
	cmd.Flags().BoolVar(&activate, "activate", false, "enable the account")
	cmd.Flags().BoolVar(&deactivate, "deactivate", false, "disable the account")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteUser(ctx, localPrincipal(), args[0])
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage integration keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a key for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, raw, err := e.CreateAPIKey(ctx, localPrincipal(), userID, name)
				if err != nil {
					return err
				}
				// the raw key is shown once and never stored
				return printJSONOrTable(map[string]any{"key": key, "raw": raw})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning account id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, localPrincipal(), userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by owning account")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAPIKey(ctx, localPrincipal(), args[0])
			})
		},
	}
	return cmd
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.Dashboard(ctx, localPrincipal())
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	return cmd
}

func deadlineCmd() *cobra.Command {
	dl := &cobra.Command{Use: "deadline", Short: "Deadline utilities"}
	dl.AddCommand(deadlineCheckCmd())
	return dl
}

// deadlineCheckCmd evaluates a date without touching the workspace, handy for
// scripting and for checking what a record would report before saving it.
func deadlineCheckCmd() *cobra.Command {
	var end, start, today string
	var progress int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Classify an end date against today",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if today != "" {
				parsed, err := deadline.ParseDate(today)
				if err != nil {
					return err
				}
				now = parsed
			}
			v, err := deadline.Evaluate(end, progress, now)
			if err != nil {
				return err
			}
			out := map[string]any{"deadline": v}
			if start != "" {
				atRisk, err := deadline.IsAtRisk(end, start, progress, now)
				if err != nil {
					return err
				}
				out["at_risk"] = atRisk
			}
			return printJSONOrTable(out)
		},
	}
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "start date, enables the risk check")
	cmd.Flags().StringVar(&today, "today", "", "override the evaluation date")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percent (0-100)")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func reportCmd() *cobra.Command {
	rpt := &cobra.Command{Use: "report", Short: "Reports"}
	rpt.AddCommand(reportDeadlinesCmd())
	return rpt
}

func reportDeadlinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Deadline report across projects and tenders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.DeadlineReport(ctx, localPrincipal())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Code", "Name", "End date", "Class", "Remaining", "Overdue", "At risk"})
				for _, row := range rows {
					tw.AppendRow(table.Row{
						row.EntityKind, row.Code, row.Name, row.EndDate,
						row.Classification, row.DaysRemaining, row.DaysOverdue, row.AtRisk,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit event log"}
	lg.AddCommand(logTailCmd())
	lg.AddCommand(logFollowCmd())
	return lg
}

func logFollowCmd() *cobra.Command {
	var intervalSeconds int
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Stream new events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cursor, err := e.Repo.LatestEventID(ctx)
				if err != nil {
					return err
				}
				ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
				defer ticker.Stop()
				enc := json.NewEncoder(os.Stdout)
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					events, err := e.Repo.EventsAfter(ctx, 100, cursor)
					if err != nil {
						return err
					}
					for _, evt := range events {
						if err := enc.Encode(evt); err != nil {
							return err
						}
						cursor = evt.ID
					}
				}
			})
		},
	}
	cmd.Flags().IntVar(&intervalSeconds, "interval", 2, "poll interval in seconds")
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, localPrincipal(), n, 0, evtType, entityKind, entityID)
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
			e, conn, err := app.Bootstrap(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			secret := os.Getenv("TENDERTRACK_JWT_SECRET")
			if secret == "" {
				secret = e.Config.Auth.JWTSecret
			}
			if secret == "" || secret == "change-me" {
				return fmt.Errorf("set TENDERTRACK_JWT_SECRET or config.auth.jwt_secret")
			}
			authCfg := server.AuthConfig{
				JWTSecret: secret,
				Issuer:    e.Config.Auth.Issuer,
				TTL:       time.Duration(e.Config.Auth.TTLMinutes) * time.Minute,
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartAlertDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving TenderTrack API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	e, conn, err := app.Bootstrap(ctx, workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
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
