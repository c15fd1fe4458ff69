package runtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamWriterPrefixesEachLine(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, "[build] ")

	n, err := sw.Write([]byte("step one\nstep two\n"))
	assert.Nil(t, err)
	assert.Equal(t, len("step one\nstep two\n"), n)
	assert.Equal(t, "[build] step one\n[build] step two\n", buf.String())
}

func TestStreamWriterCarriesPrefixAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, ">> ")

	_, err := sw.Write([]byte("partial "))
	assert.Nil(t, err)
	_, err = sw.Write([]byte("line\n"))
	assert.Nil(t, err)

	assert.Equal(t, ">> partial line\n", buf.String())
}
