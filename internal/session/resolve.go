package session

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/matheus3301/matchchat/internal/config"
)

const DefaultProfileName = "main"

// ErrInvalidName is wrapped by every profile name rejection.
var ErrInvalidName = errors.New("invalid profile name")

// Profile names double as directory names under the data root.
var profileName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// CheckName rejects names that cannot be used as a profile directory.
func CheckName(name string) error {
	if !profileName.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 lowercase letters, digits, '-' or '_'", ErrInvalidName, name)
	}
	return nil
}

// Resolve picks the active profile: the --profile flag, then default_profile
// from config.toml, then "main". A bad name is reported with where it came from.
func Resolve(flagOverride string, cfg *config.Config) (string, error) {
	name, source := DefaultProfileName, ""
	switch {
	case flagOverride != "":
		name, source = flagOverride, "--profile"
	case cfg != nil && cfg.DefaultProfile != "":
		name, source = cfg.DefaultProfile, "default_profile"
	}
	if err := CheckName(name); err != nil {
		return "", fmt.Errorf("%s: %w", source, err)
	}
	return name, nil
}
