package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// Expand replaces variables in a string with their values.
// Supported variables:
//   - ${HOME} - user's home directory
//   - ${USER} - current username
//   - ${UID}  - current numeric user ID, for rootless socket paths
//
// Unknown variables are left as they are.
func Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(name string) string {
		switch name {
		case "HOME":
			home, err := os.UserHomeDir()
			if err == nil {
				return home
			}
		case "USER":
			return getUser()
		case "UID":
			return strconv.Itoa(os.Getuid())
		}
		return "${" + name + "}"
	})
}

// ExpandPath applies Expand and then ExpandTilde. Use it for local file paths.
func ExpandPath(path string) string {
	return ExpandTilde(Expand(path))
}

func getUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
