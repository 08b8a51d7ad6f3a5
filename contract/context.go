package contract

import (
	"github.com/fundme/meta"
	"github.com/holiman/uint256"
)

// 合约调用上下文
type Context struct {
	Name    string            // 当前执行的合约的名称
	Address meta.Address      // 合约地址
	Method  string            // 被调用的方法
	Args    map[string]string // 参数
	Caller  meta.Address      // 调用者地址（合约账户、外部账户）
	Origin  meta.Address      // 最初调用者（外部账户），不涉及合约调用合约时 Caller == Origin
	Value   *uint256.Int      // 调用合约时的转账金额
}

func (c Context) Arg(key string) (string, bool) {
	v, ok := c.Args[key]
	return v, ok
}

// 是否随调用转入了资产
func (c Context) Payable() bool {
	return c.Value != nil && !c.Value.IsZero()
}
