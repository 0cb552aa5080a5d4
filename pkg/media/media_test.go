package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestReadAsDataURI(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		max     int64
		want    string
		wantErr error
	}{
		{
			name: "declared image",
			file: File{Name: "a.gif", ContentType: "image/gif", Reader: strings.NewReader("GIF89a")},
			want: "data:image/gif;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a")),
		},
		{
			name: "declared with params",
			file: File{Name: "a.png", ContentType: "image/png; charset=binary", Reader: bytes.NewReader(pngPixel)},
			want: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel),
		},
		{
			name: "sniffed when undeclared",
			file: File{Name: "pixel", Reader: bytes.NewReader(pngPixel)},
			want: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel),
		},
		{
			name:    "declared non image",
			file:    File{Name: "a.txt", ContentType: "text/plain", Reader: strings.NewReader("hi")},
			wantErr: ErrNotImage,
		},
		{
			name:    "sniffed non image",
			file:    File{Name: "a", Reader: strings.NewReader("just text")},
			wantErr: ErrNotImage,
		},
		{
			name:    "too large",
			file:    File{Name: "big.png", ContentType: "image/png", Reader: bytes.NewReader(pngPixel)},
			max:     10,
			wantErr: ErrTooLarge,
		},
		{
			name:    "no reader",
			file:    File{Name: "x", ContentType: "image/png"},
			wantErr: ErrNoFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAsDataURI(tt.file, tt.max)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadAsDataURI_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := ReadAsDataURI(File{Name: "x", ContentType: "image/png", Reader: iotest.ErrReader(boom)}, 0)
	assert.ErrorIs(t, err, boom)
}

func TestIngest(t *testing.T) {
	ch := Ingest(File{Name: "p.png", ContentType: "image/png", Reader: bytes.NewReader(pngPixel)}, 1<<20)
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.True(t, strings.HasPrefix(res.DataURI, "data:image/png;base64,"))

	_, ok = <-ch
	assert.False(t, ok, "channel closes after one result")

	res = <-Ingest(File{Name: "a.txt", ContentType: "text/plain", Reader: strings.NewReader("x")}, 0)
	assert.ErrorIs(t, res.Err, ErrNotImage)
}

func TestCheckDataURI(t *testing.T) {
	pixel := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
	big := "data:image/png;base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 2048))

	tests := []struct {
		name    string
		uri     string
		max     int64
		wantErr error
	}{
		{"png pixel", pixel, 1024, nil},
		{"no limit", big, 0, nil},
		{"javascript url", "javascript:alert(1)", 1024, ErrBadDataURI},
		{"not base64 marked", "data:image/png,raw", 1024, ErrBadDataURI},
		{"missing comma", "data:image/png;base64", 1024, ErrBadDataURI},
		{"html payload", "data:text/html;base64,PGI+aGk8L2I+", 1024, ErrNotImage},
		{"empty type", "data:;base64,AAAA", 1024, ErrNotImage},
		{"bad base64", "data:image/png;base64,!!!", 1024, ErrBadDataURI},
		{"too large", big, 1024, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDataURI(tt.uri, tt.max)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckDataURI_AcceptsReadAsDataURIOutput(t *testing.T) {
	uri, err := ReadAsDataURI(File{Name: "a.gif", ContentType: "image/gif", Reader: strings.NewReader("GIF89a")}, 1024)
	require.NoError(t, err)
	assert.NoError(t, CheckDataURI(uri, 1024))
}
