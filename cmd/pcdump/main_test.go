package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

type Point struct {
	X int32
	Y int32
}

func writeSchema(t *testing.T, name string) string {
	t.Helper()
	s := schema.MustOf[Point]().ToOwned()
	var data []byte
	var err error
	switch filepath.Ext(name) {
	case ".json":
		data, err = s.MarshalJSON()
	case ".pc":
		data, err = postcard.ToBytes(*s)
	default:
		data, err = yaml.Marshal(s)
	}
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func runCmd(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, bytes.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestDecodeHex(t *testing.T) {
	for _, name := range []string{"point.yaml", "point.json", "point.pc"} {
		t.Run(name, func(t *testing.T) {
			out, err := runCmd(t, []byte("02 04\n0608"), "-s", writeSchema(t, name), "--hex")
			require.NoError(t, err)
			assert.Equal(t, "{\"X\":1,\"Y\":2}\n{\"X\":3,\"Y\":4}\n", out)
		})
	}
}

func TestDecodeFormats(t *testing.T) {
	path := writeSchema(t, "point.yaml")

	out, err := runCmd(t, []byte{0x02, 0x04}, "-s", path, "-f", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "X: 1\nY: 2\n", out)

	out, err = runCmd(t, []byte{0x02, 0x04}, "-s", path, "-f", "postcard")
	require.NoError(t, err)
	assert.Equal(t, "0204\n", out)

	out, err = runCmd(t, []byte{0x02, 0x04}, "-s", path, "-f", "cbor")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBF, 0x61, 'X', 0x01, 0x61, 'Y', 0x02, 0xFF}, []byte(out))

	out, err = runCmd(t, []byte{0x02, 0x04}, "-s", path, "-f", "value")
	require.NoError(t, err)
	assert.Contains(t, out, `Name: (string) (len=5) "Point"`)

	_, err = runCmd(t, []byte{0x02, 0x04}, "-s", path, "-f", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func TestEncodeDecodeFramed(t *testing.T) {
	path := writeSchema(t, "point.yaml")

	framed, err := runCmd(t, []byte(`{"Y": -2, "X": 7}`), "-s", path, "-e", "--cobs", "--crc32")
	require.NoError(t, err)
	assert.Equal(t, byte(0), framed[len(framed)-1])

	stream := append([]byte(framed), 0)
	stream = append(stream, framed...)
	out, err := runCmd(t, stream, "-s", path, "--cobs", "--crc32", "--lossy")
	require.NoError(t, err)
	assert.Equal(t, "{\"X\":7,\"Y\":-2}\n{\"X\":7,\"Y\":-2}\n", out)

	hexed, err := runCmd(t, []byte("X: 7\nY: -2\n"), "-s", path, "-e", "-f", "yaml", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "0e03\n", hexed)
}

func TestBadChecksum(t *testing.T) {
	path := writeSchema(t, "point.yaml")
	msg, err := runCmd(t, []byte(`{"X": 1, "Y": 2}`), "-s", path, "-e", "--crc32")
	require.NoError(t, err)

	corrupt := []byte(msg)
	corrupt[len(corrupt)-1] ^= 0xFF
	_, err = runCmd(t, corrupt, "-s", path, "--crc32")
	require.ErrorIs(t, err, postcard.ErrBadChecksum)
	assert.ErrorContains(t, err, "message 0")
}

func TestTruncated(t *testing.T) {
	path := writeSchema(t, "point.yaml")
	_, err := runCmd(t, []byte{0x02}, "-s", path)
	require.ErrorIs(t, err, postcard.ErrUnexpectedEnd)
}

func TestSchemaQueries(t *testing.T) {
	path := writeSchema(t, "point.yaml")

	out, err := runCmd(t, nil, "-s", path, "--pseudocode")
	require.NoError(t, err)
	assert.Equal(t, "struct Point { X: i32, Y: i32 }\ni32\n", out)

	out, err = runCmd(t, nil, "-s", path, "--key", "demo/point")
	require.NoError(t, err)
	want := schema.KeyFor("demo/point", schema.MustOf[Point]())
	assert.Equal(t, want.String()+"\n", out)
	_, err = hex.DecodeString(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestUsageErrors(t *testing.T) {
	_, err := runCmd(t, nil)
	assert.ErrorContains(t, err, "--schema is required")

	_, err = runCmd(t, nil, "-s", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "loading schema")

	_, err = runCmd(t, nil, "-s", writeSchema(t, "point.yaml"), "a", "b")
	assert.ErrorContains(t, err, "unexpected argument: b")

	_, err = runCmd(t, nil, "-s", writeSchema(t, "point.yaml"), "-e", "-f", "value")
	assert.ErrorContains(t, err, `cannot encode from format "value"`)

	_, err = runCmd(t, nil, "--help")
	assert.NoError(t, err)
}
