package tokenizer

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = []string{Pad, Unk, Cls, Sep, "un", "##want", "##ed", "want", ",", "running", "##s", "the", "cafe", "中", "国", "!"}

func testTokenizer(t *testing.T, lower bool) *Tokenizer {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bert/vocab.txt", []byte(strings.Join(testVocab, "\n")+"\n"), 0644))
	tok, err := FromPretrained(fs, "/bert", lower)
	require.NoError(t, err)
	return tok
}

func TestTokenize(t *testing.T) {
	tok := testTokenizer(t, true)

	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"UNwanted,running", []string{"un", "##want", "##ed", ",", "running"}},
		{"The Café!", []string{"the", "cafe", "!"}},
		{"中国", []string{"中", "国"}},
		{"unwantedX", []string{Unk}},
		{"  \t\n", nil},
		{"[CLS] want", []string{Cls, "want"}},
		{strings.Repeat("a", 101), []string{Unk}},
	} {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, tok.Tokenize(tc.in))
		})
	}
}

func TestCaseSensitive(t *testing.T) {
	tok := testTokenizer(t, false)
	assert.Equal(t, []string{Unk, "running"}, tok.Tokenize("Want running"))
}

func TestIDs(t *testing.T) {
	tok := testTokenizer(t, true)
	assert.Equal(t, []uint32{2, 7, 1, 3}, tok.IDs([]string{Cls, "want", "zebra", Sep}))
	assert.Equal(t, len(testVocab), tok.Vocab().Size())
	assert.Equal(t, "want", tok.Vocab().Token(7))
}

func TestLoadVocabMissingSpecial(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/v.txt", []byte("a\nb\n"), 0644))
	_, err := LoadVocab(fs, "/v.txt")
	assert.Error(t, err)
}
