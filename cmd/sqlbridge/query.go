package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redbco/sqlbridge/internal/config"
	"github.com/redbco/sqlbridge/internal/database"
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] <sql>",
	Short: "Run one query and print the rows as JSON",
	Example: `  sqlbridge query --db-type postgres --dsn postgres://app@localhost/app "SELECT 1"
  sqlbridge query --db-type oracle --dsn localhost:1521/XEPDB1 --username scott --password-prompt "SELECT * FROM emp"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType, _ := cmd.Flags().GetString("db-type")
		dsn, _ := cmd.Flags().GetString("dsn")
		username, _ := cmd.Flags().GetString("username")
		prompt, _ := cmd.Flags().GetBool("password-prompt")

		req := database.ConnectionRequest{
			DBType:           dbType,
			ConnectionString: dsn,
		}
		if cmd.Flags().Changed("username") {
			req.Username = &username
		}
		if prompt {
			password, err := readPassword()
			if err != nil {
				return err
			}
			req.Password = &password
		} else if password, ok := os.LookupEnv("SQLBRIDGE_PASSWORD"); ok {
			req.Password = &password
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runQuery(ctx, req, args[0])
	},
}

func init() {
	queryCmd.Flags().String("db-type", "", "Database type: postgres, mysql, mssql or oracle")
	queryCmd.Flags().String("dsn", "", "Connection string")
	queryCmd.Flags().String("username", "", "Username (required for oracle)")
	queryCmd.Flags().Bool("password-prompt", false, "Read the password from the terminal (otherwise SQLBRIDGE_PASSWORD is used)")
	_ = queryCmd.MarkFlagRequired("db-type")
	_ = queryCmd.MarkFlagRequired("dsn")
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func runQuery(ctx context.Context, req database.ConnectionRequest, query string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	req.PoolOptions = cfg.Pool
	req.PoolOptions.MinConnections = 0

	queryCtx := ctx
	if cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
		defer cancel()
	}

	registry := database.NewConnectionRegistry()
	id, err := registry.Add(queryCtx, req)
	if err != nil {
		return err
	}
	defer registry.Remove(id)

	conn, _ := registry.Get(id)
	rows, err := conn.ExecuteQuery(queryCtx, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
