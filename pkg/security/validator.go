package security

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ValidateTarget rejects target strings that are unsafe to hand to the wipe
// tool regardless of policy: empty values, values that would parse as tool
// flags, embedded NUL or newline bytes, and relative paths escaping the
// working directory.
func ValidateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		slog.Error("security_target_validation_failed", "target", target, "reason", "empty")
		return fmt.Errorf("security: empty target")
	}

	if strings.HasPrefix(target, "-") {
		slog.Error("security_target_validation_failed", "target", target, "reason", "flag_like")
		return fmt.Errorf("security: target looks like a flag: %s", target)
	}

	if strings.ContainsAny(target, "\x00\n\r") {
		slog.Error("security_target_validation_failed", "target", target, "reason", "control_character")
		return fmt.Errorf("security: target contains control characters: %q", target)
	}

	if !filepath.IsAbs(target) {
		clean := filepath.Clean(target)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			slog.Error("security_target_validation_failed", "target", target, "reason", "path_traversal")
			return fmt.Errorf("security: path traversal detected: %s", target)
		}
	}

	return nil
}
