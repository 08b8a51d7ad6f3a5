package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/meta"
	"github.com/holiman/uint256"
)

/* 这里封装了所有的对账户的操作
 * 节点持有一个State，合约运行时通过它完成转账
 */

var (
	ErrInsufficientBalance = errors.New("account: insufficient balance")
	ErrUnknownAccount      = errors.New("account: unknown account")
	ErrBalanceOverflow     = errors.New("account: balance overflow")
	ErrInvalidAmount       = errors.New("account: invalid amount")
)

type State struct {
	mu       sync.RWMutex
	accounts map[meta.Address]meta.Account // 存储了所有账户（普通账户和合约账户），key: 账户地址
}

// 快照，用于合约执行失败时回滚
type Snapshot map[meta.Address]meta.Account

func New() *State {
	return &State{accounts: map[meta.Address]meta.Account{}}
}

// 创建普通账户，地址已存在时返回已有账户
func (s *State) CreateAccount(address meta.Address, publicKey string, balance *uint256.Int) meta.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[address]; ok {
		return acc.Copy()
	}
	if balance == nil {
		balance = new(uint256.Int)
	}
	acc := meta.Account{
		Address:   address,
		Balance:   balance.Clone(),
		PublicKey: publicKey,
	}
	s.accounts[address] = acc
	return acc.Copy()
}

// 创建智能合约账户
func (s *State) CreateContract(address meta.Address, name string) meta.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[address]; ok {
		return acc.Copy()
	}
	acc := meta.Account{
		Address:    address,
		Balance:    new(uint256.Int),
		Data:       meta.AccountData{ContractName: name},
		IsContract: true,
	}
	s.accounts[address] = acc
	return acc.Copy()
}

// 签名调用处理完后递增nonce，无论调用是否成功
func (s *State) IncrementNonce(address meta.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	acc.Nonce++
	s.accounts[address] = acc
	return nil
}

// 判断交易发起方是否有足够余额
func (s *State) CanTransfer(sender meta.Address, amount *uint256.Int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[sender]
	if !ok || acc.Balance.Lt(amount) {
		log.Infof("[CanTransfer]: Insufficient balance.")
		return false
	}
	return true
}

// 由 from 向 to 账户转账，to 不存在时自动创建
func (s *State) Transfer(from, to meta.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, from)
	}
	if sender.Balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientBalance, from, sender.Balance.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	receiver, ok := s.accounts[to]
	if !ok {
		receiver = meta.Account{Address: to, Balance: new(uint256.Int)}
	}
	credited, overflow := new(uint256.Int).AddOverflow(receiver.Balance, amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, amount)
	receiver.Balance = credited
	s.accounts[from] = sender
	s.accounts[to] = receiver
	return nil
}

// 账户地址是否存在
func (s *State) ContainsAddress(address meta.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[address]
	return ok
}

// 获取账户信息
func (s *State) GetAccount(address meta.Address) (meta.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	if !ok {
		return meta.Account{}, false
	}
	return acc.Copy(), true
}

// 根据地址获取余额，账户不存在时为0
func (s *State) GetBalance(address meta.Address) *uint256.Int {
	acc, ok := s.GetAccount(address)
	if !ok {
		return new(uint256.Int)
	}
	return acc.Balance
}

// 获取所有的账户地址（按地址排序）
func (s *State) GetTotalAddress() []meta.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totalAddress := make([]meta.Address, 0, len(s.accounts))
	for address := range s.accounts {
		totalAddress = append(totalAddress, address)
	}
	sort.Slice(totalAddress, func(i, j int) bool { return totalAddress[i] < totalAddress[j] })
	return totalAddress
}

// 是否为智能合约账户地址
func (s *State) IsContractAccount(address meta.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].IsContract
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.accounts))
	for k, v := range s.accounts {
		snap[k] = v.Copy()
	}
	return snap
}

func (s *State) Revert(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[meta.Address]meta.Account, len(snap))
	for k, v := range snap {
		s.accounts[k] = v.Copy()
	}
}

// 序列化后由调用方持久化
func (s *State) Encode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.accounts)
}

// 从磁盘获取已有的账户信息（在节点启动时执行）
func (s *State) Decode(data []byte) error {
	accounts := map[meta.Address]meta.Account{}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return err
	}
	for k, v := range accounts {
		if v.Balance == nil {
			v.Balance = new(uint256.Int)
			accounts[k] = v
		}
	}
	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
	return nil
}
