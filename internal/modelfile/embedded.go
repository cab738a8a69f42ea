// Built only when the distributor chooses to ship weights inside the binary
// (`go build -tags embedded_model`, after placing a real .gguf file at
// internal/modelfile/assets/model.gguf). Default builds never embed a
// multi-gigabyte model into the module's own git history.
//
//go:build embedded_model

package modelfile

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed assets/model.gguf
var embeddedWeights []byte

// Extract writes the embedded weights to a version-suffixed path under the
// OS temp directory, skipping the write if that path already exists so
// repeated invocations of the same build don't repeatedly copy gigabytes.
func Extract(version string) (string, error) {
	filename := fmt.Sprintf("lfmsum-model-v%s.gguf", version)
	path := filepath.Join(os.TempDir(), filename)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, embeddedWeights, 0o600); err != nil {
		return "", fmt.Errorf("modelfile: extract embedded weights: %w", err)
	}
	return path, nil
}

// HasEmbedded always reports true in an embedded_model build.
func HasEmbedded() bool { return true }
