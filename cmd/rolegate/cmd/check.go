package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RoleGate/rolegate/internal/adapter/outbound/file"
	"github.com/RoleGate/rolegate/internal/adapter/outbound/memory"
	"github.com/RoleGate/rolegate/internal/adapter/outbound/sqlite"
	"github.com/RoleGate/rolegate/internal/config"
	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
	"github.com/RoleGate/rolegate/internal/service"
)

var (
	checkUser  string
	checkObj   string
	checkOp    string
	checkObjID string
	checkProps []string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Answer a one-shot access-check query",
	Long: `Load the configured directory, build a trusted session for a user,
and answer a single access-check query.

Exit status is 0 when access is allowed and 2 when it is denied.

Example:
  rolegate check --user alice --obj ledger --op post --prop shift=night`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "", "user ID to build the session for (required)")
	checkCmd.Flags().StringVar(&checkObj, "obj", "", "object name of the permission (required)")
	checkCmd.Flags().StringVar(&checkOp, "op", "", "operation name of the permission (required)")
	checkCmd.Flags().StringVar(&checkObjID, "obj-id", "", "optional object instance ID")
	checkCmd.Flags().StringArrayVar(&checkProps, "prop", nil, "runtime constraint property key=value (repeatable)")
	_ = checkCmd.MarkFlagRequired("user")
	_ = checkCmd.MarkFlagRequired("obj")
	_ = checkCmd.MarkFlagRequired("op")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	stores, cleanup, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	props, err := parseProps(checkProps)
	if err != nil {
		return err
	}

	hier := service.NewHierarchies()
	sessions := memory.NewSessionStore()
	defer sessions.Stop()

	access, err := service.NewAccessService(
		stores.Users, stores.Roles, stores.SDSets, stores.Perms,
		sessions, nil, hier, logger,
		service.WithDecisionCacheSize(cfg.Cache.DecisionCacheSize),
	)
	if err != nil {
		return err
	}
	dirAdmin, err := service.NewDirectoryAdminService(stores.Roles, stores.SDSets, hier, access, logger)
	if err != nil {
		return err
	}
	if err := dirAdmin.ReloadFromStore(ctx); err != nil {
		return err
	}

	sess, err := access.CreateSession(ctx, checkUser, "", props, true)
	if err != nil {
		return err
	}
	for _, w := range sess.Warnings {
		fmt.Fprintf(os.Stderr, "warning: role %s skipped: %s\n", w.Role, w.Reason)
	}

	allowed, err := access.CheckAccess(ctx, sess.ID, checkObj, checkOp, checkObjID)
	if err != nil {
		return err
	}
	if allowed {
		fmt.Println("ALLOW")
		return nil
	}
	fmt.Println("DENY")
	os.Exit(2)
	return nil
}

// directoryStores bundles the four store interfaces of one backend.
type directoryStores struct {
	Roles  role.Store
	Users  auth.Store
	SDSets sod.Store
	Perms  perm.Store
}

// openDirectory builds the directory stores for the configured backend
// and returns a cleanup function.
func openDirectory(ctx context.Context, cfg *config.Config) (*directoryStores, func(), error) {
	switch cfg.Directory.Backend {
	case "sqlite":
		st, err := sqlite.Open(cfg.Directory.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return &directoryStores{Roles: st, Users: st, SDSets: st, Perms: st},
			func() { _ = st.Close() }, nil

	case "snapshot":
		snap, err := file.Load(cfg.Directory.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		stores := &directoryStores{
			Roles:  memory.NewRoleStore(),
			Users:  memory.NewUserStore(),
			SDSets: memory.NewSDSetStore(),
			Perms:  memory.NewPermStore(),
		}
		if err := snap.Apply(ctx, file.Stores{
			Roles:  stores.Roles,
			Users:  stores.Users,
			SDSets: stores.SDSets,
			Perms:  stores.Perms,
		}); err != nil {
			return nil, nil, err
		}
		return stores, func() {}, nil

	default: // memory
		return &directoryStores{
			Roles:  memory.NewRoleStore(),
			Users:  memory.NewUserStore(),
			SDSets: memory.NewSDSetStore(),
			Perms:  memory.NewPermStore(),
		}, func() {}, nil
	}
}

// parseProps converts repeated key=value flags into a property map.
func parseProps(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q: want key=value", p)
		}
		props[k] = v
	}
	return props, nil
}
