package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gregoiredehame/checker/internal/ir"
)

func WriteJSON(sessionID, outDir string, s *ir.Session) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, sessionID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return path, nil
}
