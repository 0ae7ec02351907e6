package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type Adapter struct {
	bin  string
	lang string
}

func New(binPath, lang string) *Adapter {
	if binPath == "" {
		binPath = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Adapter{bin: binPath, lang: lang}
}

func (a *Adapter) Text(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, a.bin, a.args(imagePath)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	b, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w\n%s", imagePath, err, stderr.String())
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}

func (a *Adapter) args(imagePath string) []string {
	return []string{imagePath, "stdout", "-l", a.lang, "--psm", "6"}
}
