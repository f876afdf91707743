package pathing

import (
	"os"
	"path/filepath"
)

const configFileName = "config.yml"

// GetConfigPath returns config.yml next to the running executable.
// Falls back to the working directory when the executable cannot be resolved.
func GetConfigPath() string {
	return filepath.Join(GetProgramDir(), configFileName)
}

func GetProgramDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
