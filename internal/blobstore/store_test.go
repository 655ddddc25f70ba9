package blobstore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := openMemStore(t)
	body := []byte("<html><body>tournament page</body></html>")

	key, err := s.Put(body)
	require.NoError(t, err)
	assert.Equal(t, Key(body), key)
	assert.Len(t, key, 64)

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(body, got))
}

func TestStore_PutIdempotent(t *testing.T) {
	s := openMemStore(t)
	body := []byte("<html>same content</html>")

	k1, err := s.Put(body)
	require.NoError(t, err)
	k2, err := s.Put(body)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestStore_GetMissing(t *testing.T) {
	s := openMemStore(t)
	_, err := s.Get(Key([]byte("never stored")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Has(t *testing.T) {
	s := openMemStore(t)
	key, err := s.Put([]byte("<html>x</html>"))
	require.NoError(t, err)

	ok, err := s.Has(key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(Key([]byte("other")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, Key([]byte("abc")), Key([]byte("abc")))
	assert.NotEqual(t, Key([]byte("abc")), Key([]byte("abd")))
}

func TestValidHTML(t *testing.T) {
	page := func(tag string) []byte {
		return []byte("<" + tag + ">" + strings.Repeat("x", DefaultMinBodySize) + "</" + tag + ">")
	}

	assert.True(t, ValidHTML(page("html"), 0))
	assert.True(t, ValidHTML(page("body"), 0))
	assert.True(t, ValidHTML(page("div"), 0))
	// 标签大小写不敏感
	assert.True(t, ValidHTML([]byte("<HTML>"+strings.Repeat("x", DefaultMinBodySize)+"</HTML>"), 0))

	// 过短正文
	assert.False(t, ValidHTML([]byte("<html></html>"), 0))
	// 足够长但无结构标签（如 JSON 错误响应）
	assert.False(t, ValidHTML([]byte(strings.Repeat(`{"error":"rate limited"}`, 40)), 0))
	// 自定义阈值
	assert.True(t, ValidHTML([]byte("<div>ok</div>"), 10))
	assert.False(t, ValidHTML([]byte("<div>ok</div>"), 100))
}
