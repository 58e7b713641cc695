// Package prefs persists the user's last explicit tunnel intent. The
// stored desired state outlives a controller instance and survives
// process restarts.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// StateFileName is the preference persistence file inside the state dir.
const StateFileName = "prefs.json"

type state struct {
	DesiredState bool `json:"desired_state"`
}

// Store is a file-backed preference store.
type Store struct {
	log  logrus.FieldLogger
	path string

	mx    sync.Mutex
	state state
}

// NewStore creates a Store persisting into stateDir. A missing or corrupt
// state file yields the stopped default.
func NewStore(log logrus.FieldLogger, stateDir string) *Store {
	if log == nil {
		log = logging.MustGetLogger("prefs")
	}
	s := &Store{
		log:  log,
		path: filepath.Join(stateDir, StateFileName),
	}
	s.load()
	return s
}

// DesiredState reports whether the user wants the tunnel started.
func (s *Store) DesiredState() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state.DesiredState
}

// SetDesiredState records and persists the user's intent.
func (s *Store) SetDesiredState(started bool) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.state.DesiredState = started
	return s.save()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("Failed to read preference state, assuming stopped.")
		}
		return
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		s.log.WithError(err).Warn("Corrupt preference state, assuming stopped.")
		s.state = state{}
	}
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}
