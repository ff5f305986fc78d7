package transport

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestCheckpointEncoding(t *testing.T) {
	assert := assert_.New(t)

	cp := Checkpoint{URL: "https://example.com/a.bin", TempPath: "/tmp/download-1.part", Offset: 42, Validator: `"v1"`}
	data, err := cp.Encode()
	assert.Nil(err)

	decoded, err := DecodeCheckpoint(data)
	assert.Nil(err)
	assert.Equal(checkpointVersion, decoded.Version)
	assert.Equal(cp.TempPath, decoded.TempPath)
	assert.EqualValues(42, decoded.Offset)

	// Only valid for the URL that produced it
	_, err = decodeCheckpointFor(data, "https://example.com/other.bin")
	assert.ErrorIs(err, ErrInvalidCheckpoint)
	decoded, err = decodeCheckpointFor(nil, cp.URL)
	assert.Nil(err)
	assert.Nil(decoded)
}

func TestDecodeCheckpointInvalid(t *testing.T) {
	for _, data := range []string{
		"not json",
		`{"version":99,"url":"https://example.com/a","temp_path":"/tmp/x","offset":1}`,
		`{"version":1,"url":"","temp_path":"/tmp/x","offset":1}`,
		`{"version":1,"url":"https://example.com/a","temp_path":"","offset":1}`,
		`{"version":1,"url":"https://example.com/a","temp_path":"/tmp/x","offset":-1}`,
	} {
		_, err := DecodeCheckpoint([]byte(data))
		assert_.ErrorIs(t, err, ErrInvalidCheckpoint, data)
	}
}

func TestDiscardCheckpoint(t *testing.T) {
	assert := assert_.New(t)
	tempPath := filepath.Join(t.TempDir(), "download-1.part")
	assert.Nil(os.WriteFile(tempPath, []byte("partial"), 0644))
	cp := Checkpoint{URL: "https://example.com/a.bin", TempPath: tempPath, Offset: 7}
	data, err := cp.Encode()
	assert.Nil(err)

	var d Discarder = NewDefaultRegistry(DefaultOptions())
	assert.Nil(d.Discard(data))
	assert.NoFileExists(tempPath)
	// Already gone is fine, nothing at all is fine, garbage is not
	assert.Nil(d.Discard(data))
	assert.Nil(d.Discard(nil))
	assert.ErrorIs(d.Discard([]byte("garbage")), ErrInvalidCheckpoint)
}
