package buildsystem

import (
	"os"
)

// cleanBuildDir recursively empties a module's build directory, unless
// it is the same path as the source directory.
func cleanBuildDir(e *Env) error {
	if e.Module.BuildDir == e.Module.SourceDir {
		return nil
	}
	if e.Pretend {
		return nil
	}
	e.State.SetModuleValue(e.Module.Name, "last-build-rev", "")
	entries, err := os.ReadDir(e.Module.BuildDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(e.Module.BuildDir + "/" + entry.Name()); err != nil {
			return err
		}
	}
	return nil
}
