package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adilhn/selene/internal/config"
	"github.com/adilhn/selene/pkg/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session keys",
	RunE:  runSessionsList,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-key>",
	Short: "Delete one stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openSessionManager() (*session.Manager, func() error, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Session.Backend == "memory" {
		return nil, nil, fmt.Errorf("memory session backend has no stored sessions")
	}

	store, err := session.NewSQLiteStore(cfg.Session.Path)
	if err != nil {
		return nil, nil, err
	}
	manager, err := session.NewManager(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return manager, store.Close, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	manager, closeStore, err := openSessionManager()
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := manager.List(context.Background())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("no stored sessions")
		return nil
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	manager, closeStore, err := openSessionManager()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := manager.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("session %s deleted\n", args[0])
	return nil
}
