package commoncon

// 众筹最低金额（美元）
const MinimumUSD = 50

// 原生资产精度，1个原生币 = 10^18 wei
const NativeDecimals = 18

// 本地开发用的模拟预言机参数
const MockDecimals = 8
const MockInitialAnswer = 200000000000 // $2000.00

// 合约名称
const FundMeContract = "fundme"

// 合约方法
const (
	MethodFund                  = "fund"
	MethodWithdraw              = "withdraw"
	MethodDestroy               = "destroy"
	MethodAddressToAmountFunded = "getAddressToAmountFunded"
	MethodFunder                = "getFunder"
	MethodFundersCount          = "getFundersCount"
	MethodFunders               = "getFunders"
	MethodOwner                 = "getOwner"
	MethodPriceFeed             = "getPriceFeed"
	MethodFallback              = "Fallback"
)

// 注册账户时发放的初始余额（100个原生币）
const InitBalance = "100000000000000000000"

// levelDB key
const AccountsKey = "levelDBAccountsKey"
const ContractStatePrefix = "contract/"
const AccountsPrivateKeySuffix = "PrivateKeySuffix"

// redis key
const FundMeEventsKey = "fundme:events"

// 前端校验码
const HttpCodeOK = 20000

// 客户端默认监听地址
const ClientToUserAddr = ":9999"
const ClientToNodeAddr = "127.0.0.1:8888"
