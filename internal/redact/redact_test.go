package redact

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksRegisteredValues(t *testing.T) {
	r := NewRegistry(map[string]string{"API_TOKEN": "sekret-value"})
	out := r.Redact([]byte("Authorization: Bearer sekret-value\n"))
	assert.Equal(t, "Authorization: Bearer ****\n", string(out))
}

func TestRedactIgnoresEmptyValues(t *testing.T) {
	r := NewRegistry(map[string]string{"UNSET": ""})
	out := r.Redact([]byte("nothing to see here"))
	assert.Equal(t, "nothing to see here", string(out))
}

func TestRedactPrefersLongestValueFirst(t *testing.T) {
	r := NewRegistry(map[string]string{
		"SHORT": "ab",
		"LONG":  "abcdef",
	})
	out := r.Redact([]byte("abcdef and ab"))
	assert.Equal(t, "**** and ****", string(out))
}

func TestWriterRedactsBeforeForwarding(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(map[string]string{"SECRET": "hunter2"})
	w := NewWriter(&buf, r)

	n, err := w.Write([]byte("password is hunter2\n"))
	assert.Nil(t, err)
	assert.Equal(t, len("password is hunter2\n"), n)
	assert.Equal(t, "password is ****\n", buf.String())
}

func TestAddOrdersValuesLongestFirst(t *testing.T) {
	r := &Registry{}
	r.Add("a")
	r.Add("abc")
	r.Add("ab")

	assert.Equal(t, []byte("abc"), r.values[0])
	assert.Equal(t, []byte("ab"), r.values[1])
	assert.Equal(t, []byte("a"), r.values[2])
}
