package archive

import (
	"os"
	"path/filepath"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// DetectCordovaVersion reads root/taco.json ahead of streaming, because the
// version travels in the submission query string. A missing file yields "".
func DetectCordovaVersion(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, TacoFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.FileSystemError("failed to read taco.json").WithCause(err).WithContext("path", root).Build()
	}
	return ParseTacoJSON(data)
}
