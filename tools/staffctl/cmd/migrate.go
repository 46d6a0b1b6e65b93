package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/staffsync/libs/db"
	assignmentmigrations "github.com/md-rashed-zaman/staffsync/services/assignment-service/migrations"
	employeemigrations "github.com/md-rashed-zaman/staffsync/services/employee-service/migrations"
	projectmigrations "github.com/md-rashed-zaman/staffsync/services/project-service/migrations"
	"github.com/spf13/cobra"
)

var serviceMigrations = map[string]fs.FS{
	"employee":   employeemigrations.FS,
	"project":    projectmigrations.FS,
	"assignment": assignmentmigrations.FS,
}

func serviceNames() []string {
	names := make([]string, 0, len(serviceMigrations))
	for n := range serviceMigrations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type migrateFlags struct {
	service     string
	databaseURL string
}

func (f *migrateFlags) resolve() (fs.FS, string, error) {
	fsys, ok := serviceMigrations[strings.TrimSuffix(f.service, "-service")]
	if !ok {
		return nil, "", fmt.Errorf("unknown service %q (want one of %s)", f.service, strings.Join(serviceNames(), ", "))
	}
	url := f.databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, "", fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return fsys, url, nil
}

func newMigrateCommand() *cobra.Command {
	flags := &migrateFlags{}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back a service's schema migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&flags.service, "service", "", "service whose schema to migrate: "+strings.Join(serviceNames(), ", "))
	migrateCmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "postgres URL (default: $DATABASE_URL)")
	_ = migrateCmd.MarkPersistentFlagRequired("service")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys, url, err := flags.resolve()
			if err != nil {
				return err
			}
			if err := db.MigrateUp(url, fsys); err != nil {
				return err
			}
			return printVersion(cmd, url, fsys)
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys, url, err := flags.resolve()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(url, fsys, steps); err != nil {
				return err
			}
			return printVersion(cmd, url, fsys)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys, url, err := flags.resolve()
			if err != nil {
				return err
			}
			return printVersion(cmd, url, fsys)
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

func printVersion(cmd *cobra.Command, url string, fsys fs.FS) error {
	version, dirty, err := db.MigrationVersion(url, fsys)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
