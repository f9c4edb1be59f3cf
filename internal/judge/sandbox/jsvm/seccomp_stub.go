//go:build !linux || !seccomp

package jsvm

import "fmt"

// CheckSeccompProfile fails for any non-empty profile: this build cannot load one.
func CheckSeccompProfile(profilePath string) error {
	if profilePath == "" {
		return nil
	}
	return errSeccompUnsupported(profilePath)
}

func applySeccomp(profilePath string) error {
	return errSeccompUnsupported(profilePath)
}

func errSeccompUnsupported(profilePath string) error {
	return fmt.Errorf("seccomp profile %s requested but helper was built without the seccomp tag", profilePath)
}
