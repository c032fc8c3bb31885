// Command order-export dumps the customers, stls, and orders collections to
// gzip-compressed NDJSON files, one document per line. Collections are
// exported concurrently; each file is written by a single goroutine.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/makerforge/print-api/internal/appwrite"
)

const pageSize = 100

var collections = []string{"customers", "stls", "orders"}

func main() {
	var (
		endpoint string
		project  string
		key      string
		database string
		outDir   string
	)

	flag.StringVar(&endpoint, "endpoint", "https://cloud.appwrite.io/v1", "platform REST endpoint")
	flag.StringVar(&project, "project", "", "platform project id (or PRINT_APPWRITE_PROJECT env)")
	flag.StringVar(&key, "key", "", "platform API key (or PRINT_APPWRITE_KEY env)")
	flag.StringVar(&database, "database", "main", "database id")
	flag.StringVar(&outDir, "out", "export", "output directory")
	flag.Parse()

	if project == "" {
		project = os.Getenv("PRINT_APPWRITE_PROJECT")
	}
	if key == "" {
		key = os.Getenv("PRINT_APPWRITE_KEY")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if project == "" || key == "" {
		logger.Error("project and key are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	client := appwrite.New(appwrite.Config{Endpoint: endpoint, Project: project, Key: key}, nil)

	start := time.Now()
	if err := run(ctx, logger, client, database, outDir); err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	logger.Info("export completed", "duration", time.Since(start).String())
}

func run(ctx context.Context, logger *slog.Logger, client *appwrite.Client, db, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, collection := range collections {
		g.Go(func() error {
			n, err := exportCollection(ctx, client, db, collection, outDir)
			if err != nil {
				return errors.Wrapf(err, "export %q", collection)
			}
			logger.Info("exported collection", "collection", collection, "documents", n)
			return nil
		})
	}
	return g.Wait()
}

func exportCollection(ctx context.Context, client *appwrite.Client, db, collection, outDir string) (int, error) {
	path := filepath.Join(outDir, collection+".ndjson.gz")
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, "create file")
	}
	defer func() { _ = f.Close() }()

	zw := pgzip.NewWriter(f)
	bw := bufio.NewWriter(zw)

	total := 0
	for offset := 0; ; offset += pageSize {
		list, err := client.ListDocuments(ctx, db, collection,
			appwrite.QueryLimit(pageSize),
			appwrite.QueryOffset(offset),
		)
		if err != nil {
			return total, err
		}

		for i := range list.Documents {
			line, err := json.Marshal(documentRow(&list.Documents[i]))
			if err != nil {
				return total, errors.Wrap(err, "marshal document")
			}
			if _, err := bw.Write(line); err != nil {
				return total, errors.Wrap(err, "write")
			}
			if err := bw.WriteByte('\n'); err != nil {
				return total, errors.Wrap(err, "write")
			}
			total++
		}

		if len(list.Documents) < pageSize {
			break
		}
	}

	if err := bw.Flush(); err != nil {
		return total, errors.Wrap(err, "flush")
	}
	if err := zw.Close(); err != nil {
		return total, errors.Wrap(err, "close gzip stream")
	}
	return total, f.Close()
}

// documentRow flattens a document into one exportable object, keeping the
// platform's $-prefixed system fields.
func documentRow(doc *appwrite.Document) map[string]any {
	row := make(map[string]any, len(doc.Fields)+3)
	for k, v := range doc.Fields {
		row[k] = v
	}
	row["$id"] = doc.ID
	row["$createdAt"] = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	row["$updatedAt"] = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return row
}
