package meta

type HttpResponse struct {
	Error string      `json:"error"` // 如果不为空代表错误信息
	Data  interface{} `json:"data"`
	Code  int         `json:"code"` // vue-element-admin的前端校验码，必须为20000
}

// 注册账户返回给用户的信息
type ChainAccount struct {
	AccountAddress Address `json:"account_address"`
	PublicKey      string  `json:"public_key"`
	PrivateKey     string  `json:"private_key"`
}
