package contract

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/account"
	"github.com/fundme/commoncon"
	"github.com/fundme/event"
	"github.com/fundme/levelDB"
	"github.com/fundme/meta"
	"github.com/fundme/util"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidCallParams = errors.New("contract: invalid call params")
	ErrContractNotFound  = errors.New("contract: contract not found")
	ErrMethodNotFound    = errors.New("contract: method not found")
	ErrAlreadyDeployed   = errors.New("contract: contract already deployed")
	ErrNotPayable        = errors.New("contract: method does not accept value")
	ErrInvalidSignature  = errors.New("contract: invalid signature")
	ErrBadNonce          = errors.New("contract: bad nonce")
)

type Method func(ctx context.Context, c Context) (interface{}, error)

// Contract 部署在节点上的合约
type Contract interface {
	Name() string
	Methods() map[string]Method
	State() ([]byte, error)
	Restore(data []byte) error
}

// NonPayable 包装不接受转账的方法，带转账调用时报错，由运行时退回
func NonPayable(m Method) Method {
	return func(ctx context.Context, c Context) (interface{}, error) {
		if c.Payable() {
			return nil, fmt.Errorf("%w: %s", ErrNotPayable, c.Method)
		}
		return m(ctx, c)
	}
}

// Store 持久化账户和合约状态，*levelDB.DB 实现了该接口
type Store interface {
	DBGet(key string) ([]byte, error)
	DBWriteBatch(kvs map[string][]byte) error
}

type deployed struct {
	contract Contract
	address  meta.Address
	methods  map[string]Method
}

/*
 * Service 合约运行时：
 * 调用前把转账金额转入合约账户，调用失败时回滚账户、合约状态和事件，
 * 成功后账户与合约状态在同一个batch中落盘，然后再发布事件
 */
type Service struct {
	mu        sync.Mutex
	accounts  *account.State
	store     Store
	journal   *event.Journal
	sink      event.Sink
	contracts map[string]*deployed
	unsigned  bool // 跳过验签，只用于进程内调用
}

type Option func(*Service)

// 允许未签名的调用。默认每次Invoke都要用调用者公钥验签
func AllowUnsigned() Option {
	return func(s *Service) {
		s.unsigned = true
	}
}

// store 为 nil 时只在内存中运行
func NewService(accounts *account.State, store Store, sink event.Sink, opts ...Option) *Service {
	s := &Service{
		accounts:  accounts,
		store:     store,
		journal:   event.NewJournal(),
		sink:      sink,
		contracts: map[string]*deployed{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// 合约通过它记录事件
func (s *Service) Journal() *event.Journal {
	return s.journal
}

func (s *Service) Accounts() *account.State {
	return s.accounts
}

// 从磁盘获取已有的账户信息（在节点启动时执行）
func (s *Service) LoadAccounts() error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.DBGet(commoncon.AccountsKey)
	if errors.Is(err, levelDB.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.accounts.Decode(data)
}

// 创建外部账户并落盘，地址已存在时返回已有账户
func (s *Service) CreateAccount(address meta.Address, publicKey string, balance *uint256.Int) (meta.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !address.Valid() {
		return meta.Account{}, fmt.Errorf("%w: bad address %q", ErrInvalidCallParams, address)
	}
	acc := s.accounts.CreateAccount(address, publicKey, balance)
	if s.store == nil {
		return acc, nil
	}
	data, err := s.accounts.Encode()
	if err != nil {
		return meta.Account{}, err
	}
	if err := s.store.DBWriteBatch(map[string][]byte{commoncon.AccountsKey: data}); err != nil {
		return meta.Account{}, err
	}
	return acc, nil
}

// 部署合约：创建合约账户，已有持久化状态时恢复
func (s *Service) Deploy(c Contract, address meta.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := c.Name()
	if name == "" || !address.Valid() {
		return ErrInvalidCallParams
	}
	if _, ok := s.contracts[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDeployed, name)
	}
	if s.accounts.ContainsAddress(address) && !s.accounts.IsContractAccount(address) {
		return fmt.Errorf("%w: address %s belongs to an external account", ErrInvalidCallParams, address)
	}

	if s.store != nil {
		data, err := s.store.DBGet(commoncon.ContractStatePrefix + name)
		switch {
		case err == nil:
			if err := c.Restore(data); err != nil {
				return err
			}
			log.Infof("合约 %s 从磁盘恢复状态", name)
		case !errors.Is(err, levelDB.ErrNotFound):
			return err
		}
	}

	s.accounts.CreateContract(address, name)
	d := &deployed{contract: c, address: address, methods: c.Methods()}
	if err := s.commit(d); err != nil {
		return err
	}
	s.contracts[name] = d
	log.Infof("合约 %s 部署成功，地址 %s", name, address)
	return nil
}

// Invoke 执行一次会改变状态的合约调用
func (s *Service) Invoke(ctx context.Context, task meta.ContractTask) (*meta.Receipt, error) {
	return s.run(ctx, task, true)
}

// Query 执行调用后总是回滚，用于只读查询
func (s *Service) Query(ctx context.Context, task meta.ContractTask) (interface{}, error) {
	r, err := s.run(ctx, task, false)
	if err != nil {
		return nil, err
	}
	return r.Result, nil
}

func (s *Service) run(ctx context.Context, task meta.ContractTask, commit bool) (*meta.Receipt, error) {
	// 参数校验
	if task.Name == "" || task.Method == "" {
		return nil, ErrInvalidCallParams
	}
	value := new(uint256.Int)
	if task.Value != "" {
		v, err := uint256.FromDecimal(task.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrInvalidCallParams, task.Value)
		}
		value = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.contracts[task.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, task.Name)
	}
	method, ok := d.methods[task.Method]
	if !ok && commit {
		log.Infof("找不到目标方法：%v，执行Fallback方法", task.Method)
		method, ok = d.methods[commoncon.MethodFallback]
		if !ok {
			log.Info("没有提供Fallback方法")
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, task.Name, task.Method)
	}
	if commit && !s.accounts.ContainsAddress(task.Caller) {
		return nil, fmt.Errorf("%w: unknown caller %s", ErrInvalidCallParams, task.Caller)
	}

	// 验签通过后nonce即被消耗，失败的调用不能重放
	signed := commit && !s.unsigned
	if signed {
		if err := s.authenticate(task); err != nil {
			Infof("调用 %v 合约的 %v() 方法被拒绝：%v", task.Name, task.Method, err)
			return nil, err
		}
	}
	fail := func(err error) (*meta.Receipt, error) {
		if signed {
			s.consumeNonce(d, task.Caller)
		}
		return nil, err
	}

	snap := s.accounts.Snapshot()
	prev, err := d.contract.State()
	if err != nil {
		return fail(err)
	}
	s.journal.Discard()
	revert := func() {
		s.accounts.Revert(snap)
		if err := d.contract.Restore(prev); err != nil {
			log.Errorf("合约 %s 状态回滚失败: %s", task.Name, err)
		}
		s.journal.Discard()
	}

	// 向合约转账
	if !value.IsZero() {
		if !s.accounts.CanTransfer(task.Caller, value) {
			return fail(fmt.Errorf("%w: %s", account.ErrInsufficientBalance, task.Caller))
		}
		if err := s.accounts.Transfer(task.Caller, d.address, value); err != nil {
			return fail(err)
		}
	}

	c := Context{
		Name:    task.Name,
		Address: d.address,
		Method:  task.Method,
		Args:    task.Args,
		Caller:  task.Caller,
		Origin:  task.Caller,
		Value:   value.Clone(),
	}
	res, err := method(ctx, c)
	if err != nil {
		revert()
		if commit {
			Infof("调用 %v 合约的 %v() 方法失败：%v", task.Name, task.Method, err)
		}
		return fail(err)
	}

	receipt := &meta.Receipt{
		ID:       uuid.NewString(),
		Contract: task.Name,
		Method:   task.Method,
		Caller:   task.Caller,
		Value:    value.Dec(),
		Result:   res,
	}
	if !commit {
		revert()
		return receipt, nil
	}
	if signed {
		if err := s.accounts.IncrementNonce(task.Caller); err != nil {
			revert()
			return nil, err
		}
	}
	if err := s.commit(d); err != nil {
		revert()
		return nil, err
	}
	receipt.Events = s.journal.Flush(ctx, s.sink)
	Infof("调用 %v 合约的 %v() 方法成功，结果：%v", task.Name, task.Method, res)
	return receipt, nil
}

// 用调用者账户中的公钥验签，nonce必须等于账户当前nonce
func (s *Service) authenticate(task meta.ContractTask) error {
	acc, _ := s.accounts.GetAccount(task.Caller)
	if acc.PublicKey == "" {
		return fmt.Errorf("%w: account %s has no public key", ErrInvalidSignature, task.Caller)
	}
	if task.Nonce != acc.Nonce {
		return fmt.Errorf("%w: got %d, want %d", ErrBadNonce, task.Nonce, acc.Nonce)
	}
	if len(task.Sign) == 0 {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	data, err := task.SignBytes()
	if err != nil {
		return err
	}
	if err := util.RsaVerifySignWithSha256(data, task.Sign, []byte(acc.PublicKey)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return nil
}

// 调用失败时账户和合约状态已回滚，只把递增后的nonce落盘
func (s *Service) consumeNonce(d *deployed, caller meta.Address) {
	if err := s.accounts.IncrementNonce(caller); err != nil {
		log.Errorf("账户 %s nonce 更新失败: %s", caller, err)
		return
	}
	if err := s.commit(d); err != nil {
		log.Errorf("账户 %s nonce 落盘失败: %s", caller, err)
	}
}

// 账户和合约状态一起写入
func (s *Service) commit(d *deployed) error {
	if s.store == nil {
		return nil
	}
	accounts, err := s.accounts.Encode()
	if err != nil {
		return err
	}
	state, err := d.contract.State()
	if err != nil {
		return err
	}
	return s.store.DBWriteBatch(map[string][]byte{
		commoncon.AccountsKey:                             accounts,
		commoncon.ContractStatePrefix + d.contract.Name(): state,
	})
}

// 已部署合约的地址
func (s *Service) ContractAddress(name string) (meta.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.contracts[name]
	if !ok {
		return "", false
	}
	return d.address, true
}
