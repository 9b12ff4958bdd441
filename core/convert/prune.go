package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fenrix-tec/ioxport/internal/logger"
)

// Prune removes a run's working directory. The target must resolve inside
// the storage root; anything else is refused so a bad path can never reach
// os.RemoveAll.
func Prune(storageDir, target string) error {
	root, err := filepath.Abs(storageDir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return fmt.Errorf("path %s is not inside the storage dir %s", target, storageDir)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is not inside the storage dir %s", target, storageDir)
	}

	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("cannot prune %s: %w", target, err)
	}

	logger.Info("Pruning %s", abs)
	return os.RemoveAll(abs)
}
