package sequence

import (
	"github.com/x448/float16"
)

// roundHalf rounds every value to the nearest float16. Values beyond the
// float16 range become infinite and NaN stays NaN.
func roundHalf(data []float64) {
	for i, v := range data {
		data[i] = float64(float16.Fromfloat32(float32(v)).Float32())
	}
}
