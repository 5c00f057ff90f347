package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/narrativelab/dramatis/internal/config"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity and schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// runHealth pings the database and verifies the schema tables exist.
// It connects directly so a broken AI provider configuration cannot
// mask a healthy database.
func runHealth(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	fmt.Println("database: ok")

	for _, table := range []string{"characters", "character_facts", "character_relations"} {
		var regclass *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&regclass); err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if regclass == nil {
			return fmt.Errorf("table %s is missing, run migrations first", table)
		}
		fmt.Printf("table %s: ok\n", table)
	}

	return nil
}
