// Package volume enumerates the mount points a user can eject.
package volume

import (
	"os"
	"path/filepath"
)

// MountRoot is where macOS mounts external volumes and disk images.
const MountRoot = "/Volumes"

// reservedVolumes are the boot volume and its APFS helper partitions. They
// appear under the mount root but must never be offered for eject.
var reservedVolumes = map[string]bool{
	"Macintosh HD":        true,
	"Macintosh HD - Data": true,
	"Recovery":            true,
	"Preboot":             true,
	"VM":                  true,
	"Update":              true,
}

// List returns the ejectable volume names under the mount root, in
// directory listing order. An unreadable root reads as "no volumes",
// never as an error.
func List() []string {
	return list(MountRoot)
}

func list(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if reservedVolumes[name] {
			continue
		}
		if entry.IsDir() {
			names = append(names, name)
			continue
		}
		// Mounted disk images can show up as symlinks to their mount point.
		if entry.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(root, name)); err == nil && fi.IsDir() {
				names = append(names, name)
			}
		}
	}
	return names
}

// Path returns the mount path for a volume name.
func Path(name string) string {
	return filepath.Join(MountRoot, name)
}
