package util

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/meta"
)

// 计算hash摘要
func CalculateHash(msg []byte) ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write(msg); err != nil {
		log.Info(err)
		return nil, err
	}
	return h.Sum(nil), nil
}

// 将公钥hash作为账户地址,256位
func AddressFromPublicKey(pubKey []byte) (meta.Address, error) {
	pubHash, err := CalculateHash(pubKey)
	if err != nil {
		return "", err
	}
	return meta.Address(hex.EncodeToString(pubHash)), nil
}
