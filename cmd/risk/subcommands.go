package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/risk.report/internal/client"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/features"
)

// runMigrate handles 'risk migrate [-db path] <action> [version]'.
func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("db", config.DefaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *path, out)
}

// runPredict handles 'risk predict [-server url] [input.json|-]'. The input
// is read as JSON from the named file or stdin; omitted fields take the
// form defaults.
func runPredict(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(out)
	server := fs.String("server", "http://localhost"+config.DefaultListen, "Base URL of a running risk server")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	asJSON := fs.Bool("json", false, "Print the full JSON response")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src := stdin
	if name := fs.Arg(0); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	in := features.DefaultInput()
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	c, err := client.New(*server, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p, err := c.Predict(ctx, in)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	fmt.Fprintf(out, "%s\nRisk Score: %.1f%%\n", p.Result, p.RiskScore*100)
	if !p.Logged {
		fmt.Fprintf(out, "warning: prediction was not logged: %s\n", p.LogError)
	}
	return nil
}
