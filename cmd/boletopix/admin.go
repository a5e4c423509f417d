package main

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/config"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/sqlite"
	"github.com/boddenberg/boleto-pix-go/internal/service"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo tenants and boletos into the sqlite store",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development access token",
	Example: `  boletopix token --admin
  boletopix token --holder A --tenant polo-1`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(seedCmd, tokenCmd)

	seedCmd.Flags().String("path", "", "SQLite file (default SQLITE_PATH)")

	tokenCmd.Flags().Bool("admin", false, "Issue an admin token")
	tokenCmd.Flags().String("holder", "", "Holder id")
	tokenCmd.Flags().String("tenant", "", "Tenant (polo) id")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = cfg.SQLitePath
	}

	db, err := sqlite.InitDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.SeedDemo(context.Background(), sqlite.NewStore(db, cfg.Location()), time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "demo data written to %s\n", path)
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	isAdmin, _ := cmd.Flags().GetBool("admin")
	holder, _ := cmd.Flags().GetString("holder")
	tenant, _ := cmd.Flags().GetString("tenant")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	var p domain.Principal
	switch {
	case isAdmin:
		p = domain.AdminPrincipal("cli")
	case holder != "" && tenant != "":
		p = domain.HolderPrincipal(holder, tenant)
	default:
		return fmt.Errorf("use --admin or both --holder and --tenant")
	}

	tok, err := service.NewTokenService(cfg.JWTSecret, ttl).IssueAccessToken(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
