package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/codewithboateng/riskgate/internal/ir"
)

func WriteJSON(scanID, outDir string, d *ir.GateDecision) (string, error) {
	path := filepath.Join(outDir, scanID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", err
	}
	return path, nil
}
