// Package checkpoint persists network and optimizer state and tracks the best evaluation
package checkpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/neurlang/pseudolabel/logging"
	"github.com/neurlang/pseudolabel/net/sequence"
	"github.com/neurlang/pseudolabel/optimizer"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	modelExt  = ".model.sz"
	optimExt  = ".optim.sz"
	bestTag   = "_best"
	markerExt = ".json"
)

// Name is the checkpoint name of a run's epoch.
func Name(run string, epoch int) string {
	return fmt.Sprintf("%s%d", run, epoch)
}

// Marker describes the best checkpoint of a run.
type Marker struct {
	Name    string    `json:"name"`
	Epoch   int       `json:"epoch"`
	Loss    float64   `json:"loss"`
	History []float64 `json:"history"`
}

// Saver reads and writes checkpoints in one directory.
type Saver struct {
	fs  afero.Fs
	dir string
	log *zap.Logger
}

// NewSaver creates a saver over dir, creating it on first write.
func NewSaver(fs afero.Fs, dir string, log *zap.Logger) *Saver {
	log = logging.OrNop(log)
	return &Saver{fs: fs, dir: dir, log: log}
}

func (s *Saver) path(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

// Save writes <name>.model.sz and, when opt is not nil, <name>.optim.sz.
func (s *Saver) Save(net *sequence.Network, opt *optimizer.BertAdam, name string) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, "unable to create %s", s.dir)
	}
	path := s.path(name, modelExt)
	if err := net.WriteCompressedWeightsToFile(s.fs, path); err != nil {
		return errors.Wrapf(err, "unable to save checkpoint %s", name)
	}
	if opt != nil {
		if err := s.saveOptimizer(opt, s.path(name, optimExt)); err != nil {
			return err
		}
	}
	s.log.Info("saved checkpoint", zap.String("path", path), zap.String("size", s.size(path)))
	return nil
}

func (s *Saver) saveOptimizer(opt *optimizer.BertAdam, path string) error {
	f, err := s.fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	err = opt.WriteCompressedState(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "unable to save optimizer state %s", path)
}

// SaveBest writes the network as <run>_best.model.sz and the marker as <run>_best.json.
func (s *Saver) SaveBest(net *sequence.Network, run string, m Marker) error {
	if err := s.Save(net, nil, run+bestTag); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "unable to encode best marker")
	}
	path := s.path(run+bestTag, markerExt)
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	s.log.Info("new best checkpoint", zap.String("name", m.Name), zap.Float64("loss", m.Loss))
	return nil
}

// Best reads the best marker of a run; ok is false when none was written.
func (s *Saver) Best(run string) (m Marker, ok bool, err error) {
	path := s.path(run+bestTag, markerExt)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, path); !exists {
			return Marker{}, false, nil
		}
		return Marker{}, false, errors.Wrapf(err, "unable to read %s", path)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, errors.Wrapf(err, "unable to parse %s", path)
	}
	return m, true, nil
}

// Load restores the network from <name>.model.sz and, with loadOptimizer, the
// optimizer from <name>.optim.sz. Every parameter must match in shape.
func (s *Saver) Load(net *sequence.Network, opt *optimizer.BertAdam, name string, loadOptimizer bool) error {
	if err := net.ReadCompressedWeightsFromFile(s.fs, s.path(name, modelExt), true); err != nil {
		return err
	}
	if opt == nil {
		return nil
	}
	if !loadOptimizer {
		opt.SyncFromModel()
		return nil
	}
	path := s.path(name, optimExt)
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()
	if err := opt.ReadCompressedState(f); err != nil {
		return errors.Wrapf(err, "unable to load %s", path)
	}
	s.log.Info("loaded checkpoint", zap.String("name", name), zap.Int("optimizer_steps", opt.Steps()))
	return nil
}

func (s *Saver) size(path string) string {
	fi, err := s.fs.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
