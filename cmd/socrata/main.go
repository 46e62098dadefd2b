// socrata is a command line client for a Socrata site.
//
// Settings come from --config (YAML), then SOCRATA_* environment
// variables, then flags.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/socrata/socrata-sdk-go/api/datasets"
	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/pkg/config"
)

const usage = `usage: socrata [flags] <command> [arguments]

commands:
  list <user>                  list the datasets owned by user
  create <name> [description]  create an empty dataset
  copy <id>                    copy a dataset with its rows
  copy-schema <id>             copy a dataset without its rows
  publish <id>                 publish a dataset
  upload <id> <file>           attach a file to a dataset
  rows <id> <file.jsonl>       add one row per JSON line, sent as batches

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var configPath string
	cfg := config.Default()

	flagSet := pflag.NewFlagSet("socrata", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("SOCRATA_CONFIG"), "path to YAML config file")
	host := flagSet.String("host", "", "site host name or API base URL")
	user := flagSet.String("user", "", "account username")
	password := flagSet.String("password", "", "account password")
	appToken := flagSet.String("app-token", "", "application token")
	logLevel := flagSet.String("log-level", "", "log level (debug, info, warn, error)")
	batchSize := flagSet.Int("batch-size", 500, "rows sent per batch by the rows command")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return fmt.Errorf("missing command")
	}

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		cfg, err = config.Parse(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	cfg = cfg.WithEnv()
	overrideString(&cfg.Host, *host)
	overrideString(&cfg.Username, *user)
	overrideString(&cfg.Password, *password)
	overrideString(&cfg.AppToken, *appToken)
	overrideString(&cfg.LogLevel, *logLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.BuildLogger(cfg, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := datasets.NewClient(ctx, datasets.WithConfig(cfg), datasets.WithLogger(logger))
	if err != nil {
		return err
	}

	command, rest := flagSet.Arg(0), flagSet.Args()[1:]
	switch command {
	case "list":
		if len(rest) != 1 {
			return fmt.Errorf("list takes a user name")
		}
		found, err := client.UserDatasets(ctx, rest[0])
		if err != nil {
			return err
		}
		for _, dataset := range found {
			fmt.Fprintln(stdout, dataset.ID())
		}
	case "create":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("create takes a name and an optional description")
		}
		description := ""
		if len(rest) == 2 {
			description = rest[1]
		}
		dataset, err := client.CreateDataset(ctx, rest[0], description)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, dataset.ID())
	case "copy", "copy-schema":
		if len(rest) != 1 {
			return fmt.Errorf("%s takes a dataset id", command)
		}
		source := client.Dataset(rest[0])
		var copied *datasets.Dataset
		if command == "copy" {
			copied, err = source.Copy(ctx)
		} else {
			copied, err = source.CopySchema(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, copied.ID())
	case "publish":
		if len(rest) != 1 {
			return fmt.Errorf("publish takes a dataset id")
		}
		if err := client.Dataset(rest[0]).Publish(ctx); err != nil {
			return err
		}
		logger.Info("dataset published", "id", rest[0])
	case "upload":
		if len(rest) != 2 {
			return fmt.Errorf("upload takes a dataset id and a file")
		}
		fileID, err := uploadFile(ctx, client.Dataset(rest[0]), rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, fileID)
	case "rows":
		if len(rest) != 2 {
			return fmt.Errorf("rows takes a dataset id and a JSON lines file")
		}
		return loadRows(ctx, client, client.Dataset(rest[0]), rest[1], *batchSize, logger)
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func uploadFile(ctx context.Context, dataset *datasets.Dataset, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return dataset.UploadFile(ctx, filepath.Base(path), file)
}

// loadRows queues one row per line and flushes every batchSize rows.
// Malformed lines are skipped and reported together at the end.
func loadRows(ctx context.Context, client *datasets.Client, dataset *datasets.Dataset, path string, batchSize int, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if batchSize <= 0 {
		batchSize = 1
	}

	var errs error
	flush := func() error {
		report, err := client.Flush(ctx)
		if err != nil {
			return err
		}
		errs = multierr.Append(errs, report.Err())
		logger.Info("rows sent", "acknowledged", report.Acknowledged, "dropped", len(report.Dropped))
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row model.Row
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s:%d: %w", path, line, err))
			continue
		}
		if err := dataset.QueueAddRow(row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s:%d: %w", path, line, err))
			continue
		}
		if client.PendingWrites() >= batchSize {
			if err := flush(); err != nil {
				return multierr.Append(errs, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return multierr.Append(errs, err)
	}
	if err := flush(); err != nil {
		return multierr.Append(errs, err)
	}
	return errs
}
