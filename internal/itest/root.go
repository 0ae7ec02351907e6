//go:build integration

package itest

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not locate go.mod")
		}
		dir = parent
	}
}

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
	buildOut  []byte
)

// tapalignBin builds ./cmd/tapalign once per test binary.
func tapalignBin(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		root, err := findRepoRoot()
		if err != nil {
			buildErr = err
			return
		}
		dir, err := os.MkdirTemp("", "tapalign-itest-")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(dir, "tapalign")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/tapalign")
		cmd.Dir = root
		buildOut, buildErr = cmd.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("build tapalign: %v\n%s", buildErr, buildOut)
	}
	return binPath
}
