package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func cleanup(t *testing.T) {
	t.Cleanup(func() { os.RemoveAll(cacheRoot) })
}

func TestWriteAndRead(t *testing.T) {
	cleanup(t)

	err := Write("testscope", "home", []byte(`{"ok":true}`))
	assert.NoError(t, err)

	payload, found := Read("testscope", "home", time.Minute)
	assert.True(t, found)
	assert.Equal(t, `{"ok":true}`, string(payload))
}

func TestRead_Miss(t *testing.T) {
	cleanup(t)

	_, found := Read("testscope", "nothing", time.Minute)
	assert.False(t, found)
}

func TestRead_Expired(t *testing.T) {
	cleanup(t)

	err := Write("testscope", "stale", []byte("old"))
	assert.NoError(t, err)

	// age the file past any maxAge
	past := time.Now().Add(-2 * time.Hour)
	os.Chtimes(GetCachePath("testscope", "stale"), past, past)

	_, found := Read("testscope", "stale", time.Hour)
	assert.False(t, found)
}

func TestClear(t *testing.T) {
	cleanup(t)

	Write("testscope", "entry", []byte("x"))

	err := Clear("testscope", "entry")
	assert.NoError(t, err)

	_, found := Read("testscope", "entry", time.Minute)
	assert.False(t, found)

	// clearing a missing entry is not an error
	assert.NoError(t, Clear("testscope", "entry"))
}

func TestClearScope(t *testing.T) {
	cleanup(t)

	Write("testscope", "a", []byte("1"))
	Write("testscope", "b", []byte("2"))
	Write("otherscope", "c", []byte("3"))

	err := ClearScope("testscope")
	assert.NoError(t, err)

	_, found := Read("testscope", "a", time.Minute)
	assert.False(t, found)
	_, found = Read("otherscope", "c", time.Minute)
	assert.True(t, found)
}

func TestKeyHashing_NoCollisions(t *testing.T) {
	pathA := GetCachePath("scope", "key")
	pathB := GetCachePath("scope", "other")
	assert.NotEqual(t, pathA, pathB)

	// same inputs always map to the same file
	assert.Equal(t, pathA, GetCachePath("scope", "key"))
}

func TestClearOld(t *testing.T) {
	cleanup(t)

	Write("testscope", "old", []byte("1"))
	Write("testscope", "fresh", []byte("2"))

	past := time.Now().Add(-48 * time.Hour)
	os.Chtimes(GetCachePath("testscope", "old"), past, past)

	err := ClearOld(24 * time.Hour)
	assert.NoError(t, err)

	_, found := Read("testscope", "old", 72*time.Hour)
	assert.False(t, found)
	_, found = Read("testscope", "fresh", time.Minute)
	assert.True(t, found)
}
