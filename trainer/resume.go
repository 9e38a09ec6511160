package trainer

import (
	"github.com/neurlang/pseudolabel/checkpoint"
	"go.uber.org/zap"
)

// Resume restores state before the first epoch. With --resume the network and
// optimizer of the resume epoch are loaded from the output directory and the
// best loss history is restored. Otherwise an --init_checkpoint seeds the
// network weights only.
func (t *Trainer) Resume() error {
	hp := t.HP
	net := t.Model.Network()
	switch {
	case hp.Resume:
		name := checkpoint.Name(hp.RunName, hp.ResumeEpoch)
		if err := t.Saver.Load(net, t.Opt, name, t.Opt != nil); err != nil {
			return err
		}
		m, ok, err := t.Saver.Best(hp.RunName)
		if err != nil {
			return err
		}
		if ok {
			t.best = checkpoint.NewBestTracker(m.History)
		}
		t.Log.Info("resumed", zap.String("checkpoint", name), zap.Int("best_history", len(t.best.History())))
	case hp.InitCheckpoint != "":
		dir := hp.InitCheckpointDir
		if dir == "" {
			dir = hp.OutputDir
		}
		if err := checkpoint.NewSaver(t.FS, dir, t.Log).Load(net, t.Opt, hp.InitCheckpoint, false); err != nil {
			return err
		}
		t.Log.Info("initialised from checkpoint", zap.String("dir", dir), zap.String("name", hp.InitCheckpoint))
	}
	return nil
}
