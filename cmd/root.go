package cmd

import (
	"fmt"
	"os"

	"erp/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = config.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "erp",
	Short: "Inventory backend with JWT-authenticated REST endpoints",
	Long: `erp serves a JWT-authenticated REST API over an inventory table.

	erp serve     start the HTTP server
	erp migrate   create or update the database schema
	erp events    print inventory events from RabbitMQ
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver: sqlite, postgres or mysql")
	rootCmd.PersistentFlags().String("dsn", "", "database DSN")
	bindFlag(v, "DB_DRIVER", "db-driver")
	bindFlag(v, "DATABASE_DSN", "dsn")
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
