// cmd/svm/commands/registry.go
package commands

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"svm/internal/hash"
	"svm/internal/registry"
)

// RegistryCommand dispatches the registry subcommands: `publish` records
// an object/image's export uid against its content hash, `list` prints
// every previously published entry (SPEC_FULL §11).
func RegistryCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("svm registry: expected a subcommand (publish|list)")
	}
	switch args[0] {
	case "publish":
		return registryPublish(args[1:])
	case "list":
		return registryList(args[1:])
	default:
		return fmt.Errorf("svm registry: unknown subcommand %q", args[0])
	}
}

func openRegistry(dsn string) (*registry.Registry, error) {
	dbType, conn := "sqlite", dsn
	if i := strings.Index(dsn, "://"); i > 0 {
		switch scheme := dsn[:i]; scheme {
		case "postgres", "postgresql", "sqlserver":
			dbType = scheme
		case "mysql":
			dbType, conn = "mysql", dsn[i+3:]
		}
	}
	return registry.Open(dbType, conn)
}

func registryPublish(args []string) error {
	fs := flag.NewFlagSet("registry publish", flag.ExitOnError)
	dsn := fs.String("dsn", "", "registry DSN (sqlite path, or scheme:// for postgres/mysql/sqlserver); empty means in-memory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 3 {
		return fmt.Errorf("svm registry publish: expected <uid> <label> <image-path>")
	}
	uid, err := uuid.Parse(rest[0])
	if err != nil {
		return fmt.Errorf("svm registry publish: bad uid: %w", err)
	}
	label := rest[1]
	image, err := os.ReadFile(rest[2])
	if err != nil {
		return fmt.Errorf("svm registry publish: %w", err)
	}

	r, err := openRegistry(*dsn)
	if err != nil {
		return fmt.Errorf("svm registry publish: %w", err)
	}
	defer r.Close()

	entry := registry.Entry{
		UID:       uid,
		Label:     label,
		ImageHash: hash.Image(image),
		Published: time.Now(),
	}
	if err := r.Publish(entry); err != nil {
		return fmt.Errorf("svm registry publish: %w", err)
	}

	fmt.Printf("published %s -> %s (hash %s)\n", uid, label, entry.ImageHash)
	return nil
}

func registryList(args []string) error {
	fs := flag.NewFlagSet("registry list", flag.ExitOnError)
	dsn := fs.String("dsn", "", "registry DSN (sqlite path, or scheme:// for postgres/mysql/sqlserver); empty means in-memory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := openRegistry(*dsn)
	if err != nil {
		return fmt.Errorf("svm registry list: %w", err)
	}
	defer r.Close()

	entries, err := r.List()
	if err != nil {
		return fmt.Errorf("svm registry list: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("(no published exports)")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-24s  %s  %s\n", e.UID, e.Label, e.ImageHash, e.Published.Format(time.RFC3339))
	}
	return nil
}
