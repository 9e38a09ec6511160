package hash

// Vectorized buckets every consecutive token pair of ids into out, which must
// be at least len(ids)-1 long. Position i holds the bucket of (ids[i], ids[i+1]).
func Vectorized(out []uint32, ids []uint32, salt uint32, buckets uint32) {
	for i := 0; i+1 < len(ids); i++ {
		out[i] = Bigram(ids[i], ids[i+1], salt, buckets)
	}
}
