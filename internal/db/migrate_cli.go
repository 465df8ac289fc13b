package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand runs one 'risk migrate' action against the database at
// dbPath and writes a report to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return errors.New("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migrations, err := Migrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	// Migrations own the schema, so open without NewDB's automatic up.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dbPath, err)
	}
	defer database.Close()

	versionArg := func() (uint64, error) {
		if len(args) < 2 {
			return 0, fmt.Errorf("usage: risk migrate %s <version>", action)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid version number: %s", args[1])
		}
		return v, nil
	}

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied")

	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "Rolled back one migration")

	case "version":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Migrated to version %d\n", v)

	case "force":
		v, err := versionArg()
		if err != nil {
			return err
		}
		if err := database.MigrateForce(migrations, int(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Forced migration version to %d; inspect the schema before running up\n", v)

	case "status":
		// reported below

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	return printStatus(database, migrations, out)
}

func printStatus(database *DB, migrations fs.FS, out io.Writer) error {
	st, err := database.Status(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d\n", st.Current)
	fmt.Fprintf(out, "Latest version:  %d\n", st.Latest)
	fmt.Fprintf(out, "Dirty:           %v\n", st.Dirty)
	switch {
	case st.Dirty:
		fmt.Fprintln(out, "A migration failed part way. Fix the schema by hand, then run: risk migrate force <version>")
	case st.Pending() > 0:
		fmt.Fprintf(out, "%d migration(s) pending. Run: risk migrate up\n", st.Pending())
	}
	return nil
}

// PrintMigrateHelp lists the migrate actions.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: risk migrate [-db path] <action>

Actions:
  up            Apply all pending migrations
  down          Roll back one migration
  status        Show current and latest schema versions
  version <N>   Migrate up or down to version N
  force <N>     Record version N without running it (recovery only)
  help          Show this message
`)
}
