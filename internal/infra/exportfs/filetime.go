package exportfs

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// creationTimeRunner runs the creation time tool with args. A tool that is
// not installed is not an error: the file keeps the creation time the file
// system gave it.
var creationTimeRunner = func(tool string, args ...string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return nil
	}
	out, err := exec.Command(path, args...).CombinedOutput()
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(string(out)); msg != "" {
		return fmt.Errorf("%s: %s", tool, msg)
	}
	return err
}

func setFileCreationTime(path string, created time.Time) error {
	if creationTimeTool == "" || created.IsZero() {
		return nil
	}
	return creationTimeRunner(creationTimeTool, creationTimeArgs(path, created)...)
}

// creationTimeArgs stamps created, in local time, on path.
func creationTimeArgs(path string, created time.Time) []string {
	return []string{"-d", created.Local().Format("01/02/2006 15:04:05"), path}
}
