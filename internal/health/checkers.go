package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns a checker that verifies the recordings directory exists
// and is writable by creating and removing a probe file.
func DataDir(dir string) Checker {
	return Checker{
		Name: "data_dir",
		Check: func(_ context.Context) error {
			probe := filepath.Join(dir, ".memocut-probe")
			f, err := os.Create(probe)
			if err != nil {
				return fmt.Errorf("data dir not writable: %w", err)
			}
			f.Close()
			if err := os.Remove(probe); err != nil {
				return fmt.Errorf("data dir cleanup failed: %w", err)
			}
			return nil
		},
	}
}

// Pinger is satisfied by the catalog store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Catalog returns a checker that pings the catalog database.
func Catalog(p Pinger) Checker {
	return Checker{
		Name: "catalog",
		Check: func(ctx context.Context) error {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("catalog unreachable: %w", err)
			}
			return nil
		},
	}
}
