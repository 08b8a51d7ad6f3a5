package meta

import "github.com/holiman/uint256"

// 账户（普通账户和合约账户）
type Account struct {
	Address    Address      `json:"address"`     // 账户地址
	Balance    *uint256.Int `json:"balance"`     // 账户余额，单位为最小计价单位(wei)
	Data       AccountData  `json:"data"`        // 合约数据
	PublicKey  string       `json:"public_key"`  // 账户公钥
	IsContract bool         `json:"is_contract"` // 是否为合约账户
	Nonce      uint64       `json:"nonce"`       // 下一笔签名调用需要携带的序号
}

type AccountData struct {
	ContractName string `json:"contract_name"` // 合约名称
}

// 深拷贝，避免余额指针被外部修改
func (a Account) Copy() Account {
	c := a
	if a.Balance != nil {
		c.Balance = a.Balance.Clone()
	} else {
		c.Balance = new(uint256.Int)
	}
	return c
}
