package meta

import (
	"encoding/hex"
	"strings"
)

// 账户地址，十六进制字符串（外部账户为公钥hash前20字节，合约账户为32字节）
type Address string

// 零地址，不能作为owner或者预言机地址
const ZeroAddress Address = "0000000000000000000000000000000000000000"

// 统一为不带0x前缀的小写形式
func ParseAddress(s string) (Address, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if len(s) != 40 && len(s) != 64 {
		return "", false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", false
	}
	return Address(s), true
}

func (a Address) IsZero() bool {
	return strings.Trim(string(a), "0") == ""
}

// 结构合法且不是零地址
func (a Address) Valid() bool {
	parsed, ok := ParseAddress(string(a))
	return ok && parsed == a && !a.IsZero()
}

func (a Address) String() string {
	return string(a)
}
