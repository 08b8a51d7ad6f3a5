package levelDB

import (
	"errors"

	"github.com/cloudflare/cfssl/log"
	"github.com/syndtr/goleveldb/leveldb"
)

var ErrNotFound = errors.New("levelDB: not found")

type DB struct {
	db *leveldb.DB
}

// 打开（不存在时创建）数据库目录
func InitDB(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		log.Error("db init err:", err)
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) DBGet(key string) ([]byte, error) {
	data, err := d.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error("db get err:", err)
		return nil, err
	}
	return data, nil
}

func (d *DB) DBPut(key string, value []byte) error {
	err := d.db.Put([]byte(key), value, nil)
	if err != nil {
		log.Error("db put err:", err)
	}
	return err
}

func (d *DB) DBDelete(key string) error {
	err := d.db.Delete([]byte(key), nil)
	if err != nil {
		log.Error("db delete err", err)
	}
	return err
}

// 批量写入，要么全部成功要么全部失败
func (d *DB) DBWriteBatch(kvs map[string][]byte) error {
	batch := new(leveldb.Batch)
	for k, v := range kvs {
		batch.Put([]byte(k), v)
	}
	err := d.db.Write(batch, nil)
	if err != nil {
		log.Error("db write batch err:", err)
	}
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}
