package meta

import "encoding/json"

// 合约调用请求
type ContractRequest struct {
	Method string            `json:"method"`
	Args   map[string]string `json:"args"`
	Caller string            `json:"caller"`
	Value  string            `json:"value"` // 十进制字符串，单位wei
	Nonce  uint64            `json:"nonce"` // 调用者账户当前的nonce
	Sign   string            `json:"sign"`  // 调用者私钥对 SignBytes 的签名，十六进制
}

// 合约调用结果
type ContractResponse struct {
	Receipt *Receipt `json:"receipt,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// 合约执行任务，由交易转换而来
type ContractTask struct {
	Name   string            // 合约名称
	Method string            // 方法名
	Args   map[string]string // 参数
	Caller Address           // 调用者
	Value  string            // 转账金额（十进制字符串）
	Nonce  uint64            // 防止重放
	Sign   []byte            // 调用者的签名
}

// 被签名的内容，args 按key排序，空args与nil等价
func (t ContractTask) SignBytes() ([]byte, error) {
	args := t.Args
	if len(args) == 0 {
		args = nil
	}
	return json.Marshal(struct {
		Contract string            `json:"contract"`
		Method   string            `json:"method"`
		Args     map[string]string `json:"args"`
		Caller   Address           `json:"caller"`
		Value    string            `json:"value"`
		Nonce    uint64            `json:"nonce"`
	}{t.Name, t.Method, args, t.Caller, t.Value, t.Nonce})
}

// 合约执行回执
type Receipt struct {
	ID       string      `json:"id"`
	Contract string      `json:"contract"`
	Method   string      `json:"method"`
	Caller   Address     `json:"caller"`
	Value    string      `json:"value"`
	Result   interface{} `json:"result"`
	Events   []Event     `json:"events"`
}
