// Command setup-db provisions the platform database schema: the customers,
// stls, and orders collections with their attributes and indexes. It is
// idempotent; existing collections are left untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/makerforge/print-api/internal/appwrite"
)

// attributeDelay spaces out attribute creation; the platform processes
// schema changes asynchronously and rejects rapid-fire mutations.
const attributeDelay = 500 * time.Millisecond

type attribute struct {
	key      string
	kind     string // string, integer, float
	size     int
	required bool
}

type collectionSpec struct {
	id         string
	name       string
	attributes []attribute
	indexes    map[string][]string
}

var schema = []collectionSpec{
	{
		id:   "customers",
		name: "CUSTOMERS",
		attributes: []attribute{
			{key: "first_name", kind: "string", size: 255, required: true},
			{key: "last_name", kind: "string", size: 255, required: true},
			{key: "email", kind: "string", size: 255, required: true},
			{key: "phone", kind: "string", size: 20, required: false},
			{key: "delivery_address", kind: "string", size: 255, required: true},
		},
		indexes: map[string][]string{
			"email_index": {"email"},
		},
	},
	{
		id:   "stls",
		name: "STLS",
		attributes: []attribute{
			{key: "stl_id", kind: "string", size: 255, required: true},
			{key: "file_name", kind: "string", size: 255, required: false},
			{key: "file_url", kind: "string", size: 2048, required: false},
			{key: "file_size", kind: "integer", required: false},
			{key: "material", kind: "string", size: 32, required: false},
			{key: "color", kind: "string", size: 32, required: false},
			{key: "scale", kind: "float", required: false},
			{key: "quantity", kind: "integer", required: false},
			{key: "infill", kind: "integer", required: false},
			{key: "quality", kind: "string", size: 32, required: false},
			{key: "shipping", kind: "string", size: 32, required: false},
			{key: "price", kind: "integer", required: false},
			{key: "stl_order", kind: "string", size: 64, required: false},
		},
		indexes: map[string][]string{
			"stl_id_index":    {"stl_id"},
			"stl_order_index": {"stl_order"},
		},
	},
	{
		id:   "orders",
		name: "ORDERS",
		attributes: []attribute{
			{key: "order_id", kind: "string", size: 64, required: true},
			{key: "customer_id", kind: "string", size: 64, required: true},
			{key: "stl_id", kind: "string", size: 255, required: true},
			{key: "status", kind: "string", size: 32, required: true},
			{key: "price", kind: "string", size: 32, required: true},
			{key: "delivery_type", kind: "string", size: 32, required: false},
			{key: "drop_off_location", kind: "string", size: 255, required: false},
		},
		indexes: map[string][]string{
			"order_id_index":    {"order_id"},
			"customer_id_index": {"customer_id"},
		},
	},
}

func main() {
	var (
		endpoint string
		project  string
		key      string
		database string
	)

	flag.StringVar(&endpoint, "endpoint", "https://cloud.appwrite.io/v1", "platform REST endpoint")
	flag.StringVar(&project, "project", "", "platform project id (or PRINT_APPWRITE_PROJECT env)")
	flag.StringVar(&key, "key", "", "platform API key (or PRINT_APPWRITE_KEY env)")
	flag.StringVar(&database, "database", "main", "database id")
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

	if err := run(ctx, logger, client, database); err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database setup completed")
}

func run(ctx context.Context, logger *slog.Logger, client *appwrite.Client, db string) error {
	existing, err := client.ListCollections(ctx, db)
	if err != nil {
		return errors.Wrap(err, "list collections")
	}
	present := make(map[string]bool, len(existing))
	for _, col := range existing {
		present[col.ID] = true
	}

	for _, spec := range schema {
		if present[spec.id] {
			logger.Info("collection already exists", "collection", spec.id)
			continue
		}
		if err := createCollection(ctx, logger, client, db, spec); err != nil {
			return errors.Wrapf(err, "create collection %q", spec.id)
		}
	}
	return nil
}

func createCollection(ctx context.Context, logger *slog.Logger, client *appwrite.Client, db string, spec collectionSpec) error {
	logger.Info("creating collection", "collection", spec.id)
	if err := client.CreateCollection(ctx, db, spec.id, spec.name); err != nil {
		return err
	}

	for _, a := range spec.attributes {
		if err := sleep(ctx, attributeDelay); err != nil {
			return err
		}
		var err error
		switch a.kind {
		case "string":
			err = client.CreateStringAttribute(ctx, db, spec.id, a.key, a.size, a.required)
		case "integer":
			err = client.CreateIntegerAttribute(ctx, db, spec.id, a.key, a.required)
		case "float":
			err = client.CreateFloatAttribute(ctx, db, spec.id, a.key, a.required)
		default:
			err = errors.Errorf("unknown attribute kind %q", a.kind)
		}
		if err != nil {
			return errors.Wrapf(err, "attribute %q", a.key)
		}
		logger.Info("created attribute", "collection", spec.id, "attribute", a.key)
	}

	for name, attrs := range spec.indexes {
		if err := sleep(ctx, attributeDelay); err != nil {
			return err
		}
		if err := client.CreateIndex(ctx, db, spec.id, name, attrs); err != nil {
			// Index creation is best-effort; queries still work unindexed.
			logger.Warn("index not created", "collection", spec.id, "index", name, "error", err)
			continue
		}
		logger.Info("created index", "collection", spec.id, "index", name)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
