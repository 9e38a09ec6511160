// Package device decides how many data parallel replicas a run uses
package device

import (
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"
	"github.com/neurlang/pseudolabel/logging"
	"go.uber.org/zap"
)

// GPU describes one CUDA device.
type GPU struct {
	Index  int
	Name   string
	Memory uint64
}

// Placement is the outcome of device selection.
type Placement struct {
	// Devices is the number of replicas each batch is split over.
	Devices int

	// GPUs lists the CUDA devices found, empty when CUDA is disabled or absent.
	GPUs []GPU

	// Rank is the distributed rank, or -1.
	Rank int

	CPU   string
	Cores int
}

// Distributed reports whether this process is one rank of a distributed run.
func (p Placement) Distributed() bool {
	return p.Rank != -1
}

// Select enumerates devices. Without a rank every CUDA device gets a replica;
// a distributed rank always runs a single replica.
func Select(noCuda bool, localRank int, log *zap.Logger) Placement {
	log = logging.OrNop(log)
	p := Placement{
		Devices: 1,
		Rank:    localRank,
		CPU:     cpuid.CPU.BrandName,
		Cores:   runtime.NumCPU(),
	}
	if !noCuda {
		gpus, version, err := enumerate()
		if err != nil {
			log.Warn("cuda unavailable", zap.Error(err))
		}
		if len(gpus) > 0 {
			log.Info("cuda", zap.String("version", version), zap.Int("devices", len(gpus)))
		}
		for _, g := range gpus {
			log.Info("gpu", zap.Int("index", g.Index), zap.String("name", g.Name), zap.String("memory", humanize.Bytes(g.Memory)))
		}
		p.GPUs = gpus
		if localRank == -1 && len(gpus) > 1 {
			p.Devices = len(gpus)
		}
	}

	log.Info("device",
		zap.String("cpu", p.CPU),
		zap.Int("cores", p.Cores),
		zap.Bool("avx2", cpuid.CPU.Supports(cpuid.AVX2)),
		zap.Int("replicas", p.Devices),
		zap.Int("rank", p.Rank),
		zap.Bool("distributed", p.Distributed()))
	return p
}
