package levelDB

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := InitDB(t.TempDir())
	assert.NilError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)

	assert.NilError(t, db.DBPut("k", []byte("v")))
	v, err := db.DBGet("k")
	assert.NilError(t, err)
	assert.Equal(t, string(v), "v")

	assert.NilError(t, db.DBDelete("k"))
	_, err = db.DBGet("k")
	assert.Assert(t, errors.Is(err, ErrNotFound))
}

func TestWriteBatch(t *testing.T) {
	db := openTestDB(t)

	err := db.DBWriteBatch(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	})
	assert.NilError(t, err)

	a, err := db.DBGet("a")
	assert.NilError(t, err)
	b, err := db.DBGet("b")
	assert.NilError(t, err)
	assert.Equal(t, string(a)+string(b), "12")
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	db, err := InitDB(dir)
	assert.NilError(t, err)
	assert.NilError(t, db.DBPut("persist", []byte("yes")))
	assert.NilError(t, db.Close())

	db, err = InitDB(dir)
	assert.NilError(t, err)
	defer db.Close()
	v, err := db.DBGet("persist")
	assert.NilError(t, err)
	assert.Equal(t, string(v), "yes")
}
