//go:build cuda

package device

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/cu"
)

func enumerate() ([]GPU, string, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return nil, "", errors.Wrapf(err, "unable to count cuda devices")
	}
	version := fmt.Sprint(cu.Version())
	var gpus []GPU
	for d := 0; d < n; d++ {
		name, _ := cu.Device(d).Name()
		mem, err := cu.Device(d).TotalMem()
		if err != nil {
			return gpus, version, errors.Wrapf(err, "unable to query device %d", d)
		}
		gpus = append(gpus, GPU{Index: d, Name: name, Memory: uint64(mem)})
	}
	return gpus, version, nil
}
