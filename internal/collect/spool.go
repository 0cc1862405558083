package collect

import (
	"encoding/json"
	"io/fs"
	"os"

	"github.com/pkg/errors"
)

// Spool keeps the last sample that could not be delivered so it can be
// retried after a reconnect. An empty path disables spooling.
type Spool struct {
	path string
}

func NewSpool(path string) *Spool {
	return &Spool{path: path}
}

// Put overwrites the spooled sample.
func (s *Spool) Put(sample Sample) error {
	if s.path == "" {
		return nil
	}

	raw, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "encode spooled sample")
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Take returns the spooled sample, if any, and removes it. The second
// return value reports whether a sample was present.
func (s *Spool) Take() (Sample, bool, error) {
	var sample Sample
	if s.path == "" {
		return sample, false, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sample, false, nil
		}
		return sample, false, err
	}

	if err := json.Unmarshal(raw, &sample); err != nil {
		return sample, false, errors.Wrap(err, "decode spooled sample")
	}

	if err := os.Remove(s.path); err != nil {
		return sample, false, err
	}
	return sample, true, nil
}
