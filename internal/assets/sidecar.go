package assets

import (
	"encoding/json"
	"os"
	"time"
)

// Sidecar records the upstream ingestion result for a stored file. It lives
// at <file>.meta.json and is authoritative for the "already ingested"
// short-circuit.
type Sidecar struct {
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	ChunksAdded int       `json:"chunks_added"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// SidecarPath returns the sidecar location for a stored file path.
func SidecarPath(filePath string) string { return filePath + ".meta.json" }

// WriteSidecar persists the ingestion record next to the file.
func WriteSidecar(filePath string, sc *Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(filePath), data, 0o644)
}

// ReadSidecar loads the ingestion record for a stored file. A missing or
// unreadable sidecar returns (nil, nil): absence simply means "not ingested".
func ReadSidecar(filePath string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, nil
	}
	return &sc, nil
}

// Ingested reports whether the sidecar proves a completed ingestion.
func (s *Sidecar) Ingested() bool { return s != nil && s.ChunksAdded > 0 }
