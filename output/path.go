package output

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/status-im/promptctl/models"
)

// ProtectedRoot is a directory nothing may be written into, at any depth
type ProtectedRoot struct {
	Path string
	// Windows roots compare case-insensitively and accept either separator
	CaseInsensitive bool
}

var posixRoots = []string{
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib32",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/var/lib",
	"/var/log",
	"/Library",
	"/System",
	"/private/etc",
	"/private/var/db",
}

var windowsRoots = []string{
	`C:\Windows`,
	`C:\Program Files`,
	`C:\Program Files (x86)`,
	`C:\ProgramData`,
}

// DefaultProtectedRoots returns the operating-system directories rejected by
// default. Both POSIX and Windows roots are always present; each only ever
// matches paths of its own style.
func DefaultProtectedRoots() []ProtectedRoot {
	roots := make([]ProtectedRoot, 0, len(posixRoots)+len(windowsRoots))
	for _, p := range posixRoots {
		roots = append(roots, ProtectedRoot{Path: p})
	}
	for _, p := range windowsRoots {
		roots = append(roots, ProtectedRoot{Path: p, CaseInsensitive: true})
	}
	return roots
}

// ResolveSafePath turns a caller supplied destination into the path that
// will actually be written. The parent directory is resolved to its real
// location (symlinks and ".." segments included) and the file name is
// re-attached to it, so the result never depends on the literal string.
// It only reads the filesystem.
func ResolveSafePath(raw string, roots []ProtectedRoot) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", models.Errorf(models.ErrInvalidDestination, "Destination path must not be empty")
	}
	if strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, string(filepath.Separator)) {
		return "", models.Errorf(models.ErrInvalidDestination, "Destination %q is a directory, not a file path", raw)
	}

	parent := filepath.Dir(raw)
	info, err := os.Stat(parent)
	if err != nil {
		return "", models.Wrapf(models.ErrInvalidDestination, err, "Destination directory %q does not exist", parent)
	}
	if !info.IsDir() {
		return "", models.Errorf(models.ErrInvalidDestination, "Destination parent %q is not a directory", parent)
	}

	absParent, err := filepath.Abs(parent)
	if err != nil {
		return "", models.Wrapf(models.ErrInvalidDestination, err, "Cannot resolve destination directory %q", parent)
	}
	realParent, err := filepath.EvalSymlinks(absParent)
	if err != nil {
		return "", models.Wrapf(models.ErrInvalidDestination, err, "Cannot resolve destination directory %q", parent)
	}

	if root, ok := protectedBy(realParent, roots); ok {
		return "", models.Errorf(models.ErrForbiddenDestination,
			"Refusing to write %q: %q is inside protected directory %q", raw, realParent, root)
	}

	base := filepath.Base(raw)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", models.Errorf(models.ErrInvalidDestination, "Destination %q has no file name", raw)
	}
	final := filepath.Join(realParent, base)

	if info, err := os.Lstat(final); err == nil {
		if info.IsDir() {
			return "", models.Errorf(models.ErrInvalidDestination, "Destination %q is a directory", final)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", models.Wrapf(models.ErrInvalidDestination, err, "Cannot inspect destination %q", final)
	}

	return final, nil
}

func protectedBy(dir string, roots []ProtectedRoot) (string, bool) {
	if dir == "/" {
		return "/", true
	}
	for _, root := range roots {
		if isWithin(dir, root) {
			return root.Path, true
		}
	}
	return "", false
}

// isWithin reports whether dir equals root or lies below it, matching whole
// path segments only ("/etcetera" is not under "/etc").
func isWithin(dir string, root ProtectedRoot) bool {
	if root.CaseInsensitive {
		d := strings.TrimRight(strings.ReplaceAll(dir, "/", `\`), `\`)
		r := strings.TrimRight(strings.ReplaceAll(root.Path, "/", `\`), `\`)
		if len(d) < len(r) || !strings.EqualFold(d[:len(r)], r) {
			return false
		}
		return len(d) == len(r) || d[len(r)] == '\\'
	}

	r := strings.TrimRight(root.Path, "/")
	d := strings.TrimRight(dir, "/")
	if !strings.HasPrefix(d, r) {
		return false
	}
	return len(d) == len(r) || d[len(r)] == '/'
}
