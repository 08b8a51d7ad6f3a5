package util

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/cloudflare/cfssl/log"
)

var (
	ErrPrivateKey = errors.New("util: private key error")
	ErrPublicKey  = errors.New("util: public key error")
)

// 数字签名，keyBytes 为 GetKeyPair 生成的PEM私钥
func RsaSignWithSha256(data []byte, keyBytes []byte) ([]byte, error) {
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, ErrPrivateKey
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		log.Info("ParsePKCS1PrivateKey err", err)
		return nil, ErrPrivateKey
	}
	hashed := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
}

// 签名验证，keyBytes 为PEM公钥
func RsaVerifySignWithSha256(data, signData, keyBytes []byte) error {
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return ErrPublicKey
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return ErrPublicKey
	}
	pubKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return ErrPublicKey
	}
	hashed := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, hashed[:], signData); err != nil {
		log.Info("验签不通过！")
		return err
	}
	return nil
}
