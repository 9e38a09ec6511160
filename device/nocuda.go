//go:build !cuda

package device

func enumerate() ([]GPU, string, error) {
	return nil, "", nil
}
