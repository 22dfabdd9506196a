package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionManager_RoundTrip(t *testing.T) {
	cm := NewCompressionManager()
	data := bytes.Repeat([]byte(`{"colaborador_id":1,"tipo":"ENTRADA"}`), 200)

	for _, algorithm := range []CompressionType{CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed, err := cm.Compress(data, algorithm, DefaultCompressionLevel)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data))

			decompressed, err := cm.Decompress(compressed, algorithm)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCompressionManager_None(t *testing.T) {
	cm := NewCompressionManager()
	data := []byte("uncompressed payload")

	compressed, err := cm.Compress(data, CompressionTypeNone, 0)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)

	decompressed, err := cm.Decompress(compressed, CompressionTypeNone)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestCompressionManager_UnknownAlgorithm(t *testing.T) {
	cm := NewCompressionManager()

	_, err := cm.Compress([]byte("data"), CompressionType("bzip2"), 0)
	require.Error(t, err)

	engineErr, ok := err.(*EngineError)
	require.True(t, ok)
	assert.Equal(t, EngineErrorTypeCompression, engineErr.Type)
}

func TestCompressionManager_DefaultLevel(t *testing.T) {
	cm := NewCompressionManager()
	data := bytes.Repeat([]byte("aaaa"), 100)

	// non-positive levels fall back to the default
	compressed, err := cm.Compress(data, CompressionTypeGzip, -1)
	require.NoError(t, err)

	decompressed, err := cm.Decompress(compressed, CompressionTypeGzip)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestCompressionManager_SupportedAlgorithms(t *testing.T) {
	cm := NewCompressionManager()
	algorithms := cm.SupportedAlgorithms()
	assert.Len(t, algorithms, 3)
	assert.Contains(t, algorithms, CompressionTypeGzip)
	assert.Contains(t, algorithms, CompressionTypeLZ4)
	assert.Contains(t, algorithms, CompressionTypeZstd)
}
