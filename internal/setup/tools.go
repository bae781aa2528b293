package setup

import (
	"errors"
	"fmt"
	"os/exec"
)

// IconTool is the program used by the iconutil compiler.
var IconTool = "iconutil"

// ErrToolMissing is returned by Verify when a tool cannot be resolved.
var ErrToolMissing = errors.New("required tool is not installed")

// ToolStatus describes one resolved tool.
type ToolStatus struct {
	Name string
	Path string
}

// Verify resolves tool on PATH, or IconTool when tool is empty.
func Verify(tool string) (ToolStatus, error) {
	if tool == "" {
		tool = IconTool
	}
	logger := getLogger().With("tool", tool)

	path, err := exec.LookPath(tool)
	if err != nil {
		logger.Debug("tool lookup failed", "error", err)
		return ToolStatus{Name: tool}, fmt.Errorf("%s: %w", tool, ErrToolMissing)
	}

	logger.Debug("tool resolved", "path", path)
	return ToolStatus{Name: tool, Path: path}, nil
}
