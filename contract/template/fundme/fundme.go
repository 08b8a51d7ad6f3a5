package fundme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/commoncon"
	"github.com/fundme/event"
	"github.com/fundme/meta"
	"github.com/fundme/oracle"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidConfiguration     = errors.New("fundme: invalid configuration")
	ErrInsufficientContribution = errors.New("fundme: insufficient contribution")
	ErrUnauthorized             = errors.New("fundme: caller is not the owner")
	ErrTransferFailed           = errors.New("fundme: transfer failed")
	ErrArithmeticOverflow       = errors.New("fundme: arithmetic overflow")
	ErrDestroyed                = errors.New("fundme: contract destroyed")
	ErrIndexOutOfRange          = errors.New("fundme: funder index out of range")
	ErrCorruptState             = errors.New("fundme: corrupt state")
)

// 调用方输入错误，直接返回给调用者，不重试
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInsufficientContribution) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrIndexOutOfRange)
}

// Transferer 合约账户向外转账的机制
type Transferer interface {
	Transfer(from, to meta.Address, amount *uint256.Int) error
}

type Config struct {
	Owner      meta.Address // 部署者，之后不可修改
	PriceFeed  meta.Address // 预言机地址
	Self       meta.Address // 合约账户地址，资金托管在这里
	MinimumUSD *uint256.Int // 最低金额，18位精度的美元；nil时使用commoncon.MinimumUSD
}

type Option func(*FundMe)

func WithEmitter(e event.Emitter) Option {
	return func(f *FundMe) {
		if e != nil {
			f.emitter = e
		}
	}
}

func WithName(name string) Option {
	return func(f *FundMe) {
		f.name = name
	}
}

// FundMe 众筹合约：达到最低美元金额才接受转账，只有owner可以提取
type FundMe struct {
	mu sync.RWMutex

	name       string
	owner      meta.Address
	priceFeed  meta.Address
	self       meta.Address
	minimumUSD *uint256.Int
	feed       oracle.Feed
	bank       Transferer
	emitter    event.Emitter

	// balances 中的key与funders一一对应：只有入金成功才会写入，提取时一起清空
	balances  map[meta.Address]*uint256.Int
	funders   []meta.Address
	held      *uint256.Int
	destroyed bool
}

// 50美元，18位精度
func DefaultMinimumUSD() *uint256.Int {
	return USD(commoncon.MinimumUSD)
}

// 整数美元转换为18位精度
func USD(dollars uint64) *uint256.Int {
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(commoncon.NativeDecimals))
	return new(uint256.Int).Mul(uint256.NewInt(dollars), unit)
}

func New(cfg Config, feed oracle.Feed, bank Transferer, opts ...Option) (*FundMe, error) {
	switch {
	case !cfg.Owner.Valid():
		return nil, fmt.Errorf("%w: owner address %q", ErrInvalidConfiguration, cfg.Owner)
	case !cfg.PriceFeed.Valid():
		return nil, fmt.Errorf("%w: price feed address %q", ErrInvalidConfiguration, cfg.PriceFeed)
	case !cfg.Self.Valid():
		return nil, fmt.Errorf("%w: contract address %q", ErrInvalidConfiguration, cfg.Self)
	case feed == nil:
		return nil, fmt.Errorf("%w: nil price feed", ErrInvalidConfiguration)
	case bank == nil:
		return nil, fmt.Errorf("%w: nil transfer mechanism", ErrInvalidConfiguration)
	}
	minimum := cfg.MinimumUSD
	if minimum == nil {
		minimum = DefaultMinimumUSD()
	}

	f := &FundMe{
		name:       commoncon.FundMeContract,
		owner:      cfg.Owner,
		priceFeed:  cfg.PriceFeed,
		self:       cfg.Self,
		minimumUSD: minimum.Clone(),
		feed:       feed,
		bank:       bank,
		emitter:    event.Discard,
		balances:   map[meta.Address]*uint256.Int{},
		held:       new(uint256.Int),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// value 对应的美元价值：value * answer / 10^decimals，先乘后除，中间结果512位
func ConversionRate(p oracle.Price, value *uint256.Int) (*uint256.Int, error) {
	if p.Answer == nil || p.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive price", ErrInsufficientContribution)
	}
	answer, overflow := uint256.FromBig(p.Answer)
	if overflow {
		return nil, fmt.Errorf("%w: price out of range", ErrInsufficientContribution)
	}
	// 10^78 超过256位
	if p.Decimals > 77 {
		return nil, fmt.Errorf("%w: price decimals %d out of range", ErrInsufficientContribution, p.Decimals)
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(p.Decimals)))
	usd, overflow := new(uint256.Int).MulDivOverflow(value, answer, scale)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return usd, nil
}

// Fund 记录一笔入金。value 已经由运行时转入合约账户，失败时由运行时回滚
func (f *FundMe) Fund(ctx context.Context, caller meta.Address, value *uint256.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return ErrDestroyed
	}
	if value == nil || value.IsZero() {
		return fmt.Errorf("%w: zero value", ErrInsufficientContribution)
	}

	price, err := f.feed.LatestPrice(ctx)
	if err != nil {
		return fmt.Errorf("%w: price feed: %w", ErrInsufficientContribution, err)
	}
	usd, err := ConversionRate(price, value)
	if err != nil {
		return err
	}
	if usd.Lt(f.minimumUSD) {
		return fmt.Errorf("%w: %s below minimum %s", ErrInsufficientContribution, usd.Dec(), f.minimumUSD.Dec())
	}

	prev, known := f.balances[caller]
	if !known {
		prev = new(uint256.Int)
		if len(f.funders) == math.MaxInt {
			return fmt.Errorf("%w: funders registry full", ErrArithmeticOverflow)
		}
	}
	balance, overflow := new(uint256.Int).AddOverflow(prev, value)
	if overflow {
		return fmt.Errorf("%w: balance of %s", ErrArithmeticOverflow, caller)
	}
	held, overflow := new(uint256.Int).AddOverflow(f.held, value)
	if overflow {
		return fmt.Errorf("%w: contract balance", ErrArithmeticOverflow)
	}

	f.balances[caller] = balance
	f.held = held
	if !known {
		f.funders = append(f.funders, caller)
	}
	f.emitter.Emit(f.name, meta.EventFunded, map[string]string{
		"contributor": caller.String(),
		"amount":      value.Dec(),
		"usd":         usd.Dec(),
	})
	log.Infof("[fundme] %s 入金 %s wei（约 %s USD-wei）", caller, value.Dec(), usd.Dec())
	return nil
}

// Withdraw 把托管的全部资金转给owner并清空账本，返回转出的金额
func (f *FundMe) Withdraw(ctx context.Context, caller meta.Address) (*uint256.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return nil, ErrDestroyed
	}
	if caller != f.owner {
		log.Infof("[fundme] %s 非合约发布者，无法提取", caller)
		return nil, ErrUnauthorized
	}
	amount, err := f.payout()
	if err != nil {
		return nil, err
	}
	f.emitter.Emit(f.name, meta.EventWithdrawn, map[string]string{
		"owner":  f.owner.String(),
		"amount": amount.Dec(),
	})
	log.Infof("[fundme] owner 提取 %s wei", amount.Dec())
	return amount, nil
}

// Destroy 销毁合约，权限与Withdraw一致；剩余资金转给owner
func (f *FundMe) Destroy(ctx context.Context, caller meta.Address) (*uint256.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return nil, ErrDestroyed
	}
	if caller != f.owner {
		return nil, ErrUnauthorized
	}
	amount, err := f.payout()
	if err != nil {
		return nil, err
	}
	f.destroyed = true
	f.emitter.Emit(f.name, meta.EventDestroyed, map[string]string{
		"owner":  f.owner.String(),
		"amount": amount.Dec(),
	})
	log.Infof("[fundme] 合约已销毁，退回 %s wei", amount.Dec())
	return amount, nil
}

// 转账成功后才清空账本，失败时状态不变
func (f *FundMe) payout() (*uint256.Int, error) {
	amount := f.held.Clone()
	if err := f.bank.Transfer(f.self, f.owner, amount); err != nil {
		log.Errorf("[fundme] 转账给owner失败: %s", err)
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	f.balances = map[meta.Address]*uint256.Int{}
	f.funders = nil
	f.held = new(uint256.Int)
	return amount, nil
}

func (f *FundMe) AddressToAmountFunded(addr meta.Address) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if b, ok := f.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (f *FundMe) Funder(index int) (meta.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if index < 0 || index >= len(f.funders) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return f.funders[index], nil
}

func (f *FundMe) FundersCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.funders)
}

// 出资人及其累计金额
type FunderBalance struct {
	Address meta.Address `json:"address"`
	Amount  string       `json:"amount"`
}

// 按登记顺序返回所有出资人
func (f *FundMe) Funders() []FunderBalance {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]FunderBalance, 0, len(f.funders))
	for _, addr := range f.funders {
		out = append(out, FunderBalance{Address: addr, Amount: f.balances[addr].Dec()})
	}
	return out
}

func (f *FundMe) Owner() meta.Address {
	return f.owner
}

func (f *FundMe) PriceFeed() meta.Address {
	return f.priceFeed
}

func (f *FundMe) MinimumUSD() *uint256.Int {
	return f.minimumUSD.Clone()
}

// 托管中尚未提取的总额
func (f *FundMe) Held() *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.held.Clone()
}

func (f *FundMe) Destroyed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.destroyed
}

// 持久化格式
type ledgerState struct {
	Owner     meta.Address                  `json:"owner"`
	PriceFeed meta.Address                  `json:"price_feed"`
	Funders   []meta.Address                `json:"funders"`
	Balances  map[meta.Address]*uint256.Int `json:"balances"`
	Held      *uint256.Int                  `json:"held"`
	Destroyed bool                          `json:"destroyed"`
}

func (f *FundMe) State() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return json.Marshal(ledgerState{
		Owner:     f.owner,
		PriceFeed: f.priceFeed,
		Funders:   f.funders,
		Balances:  f.balances,
		Held:      f.held,
		Destroyed: f.destroyed,
	})
}

// Restore 恢复持久化的账本，owner和预言机地址必须与部署参数一致
func (f *FundMe) Restore(data []byte) error {
	var st ledgerState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Owner != f.owner || st.PriceFeed != f.priceFeed {
		return fmt.Errorf("%w: persisted owner %s / price feed %s do not match", ErrInvalidConfiguration, st.Owner, st.PriceFeed)
	}
	// funders 无重复且与 balances 的key一一对应，held 等于余额之和
	if len(st.Funders) != len(st.Balances) {
		return fmt.Errorf("%w: %d funders, %d balances", ErrCorruptState, len(st.Funders), len(st.Balances))
	}
	balances := make(map[meta.Address]*uint256.Int, len(st.Balances))
	sum := new(uint256.Int)
	for _, addr := range st.Funders {
		if _, dup := balances[addr]; dup {
			return fmt.Errorf("%w: duplicate funder %s", ErrCorruptState, addr)
		}
		b, ok := st.Balances[addr]
		if !ok || b == nil {
			return fmt.Errorf("%w: funder %s has no balance", ErrCorruptState, addr)
		}
		if _, overflow := sum.AddOverflow(sum, b); overflow {
			return fmt.Errorf("%w: balances overflow", ErrCorruptState)
		}
		balances[addr] = b
	}
	held := st.Held
	if held == nil {
		held = new(uint256.Int)
	}
	if !held.Eq(sum) {
		return fmt.Errorf("%w: held %s, balances sum to %s", ErrCorruptState, held.Dec(), sum.Dec())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.funders = st.Funders
	f.balances = balances
	f.held = held
	f.destroyed = st.Destroyed
	return nil
}
