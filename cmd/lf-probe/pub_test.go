package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	got []string
}

func (f *fakePublisher) Publish(entry []byte) error {
	if !strings.HasPrefix(string(entry), "{") {
		return errors.New("not an object")
	}
	f.got = append(f.got, string(entry))
	return nil
}

func TestPublishLines(t *testing.T) {
	in := strings.NewReader("{\"endpoint\":\"/a\"}\n\n  {\"endpoint\":\"/b\"}  \nnot json\n")
	pub := &fakePublisher{}

	sent, skipped, err := publishLines(in, pub)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{`{"endpoint":"/a"}`, `{"endpoint":"/b"}`}, pub.got)
}
