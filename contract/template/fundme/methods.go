package fundme

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/meta"
)

func (f *FundMe) Name() string {
	return f.name
}

// 合约对外暴露的方法。直接转账（找不到方法）时按 fund 处理
func (f *FundMe) Methods() map[string]contract.Method {
	return map[string]contract.Method{
		commoncon.MethodFund:                  f.fund,
		commoncon.MethodFallback:              f.fund,
		commoncon.MethodWithdraw:              contract.NonPayable(f.withdraw),
		commoncon.MethodDestroy:               contract.NonPayable(f.destroy),
		commoncon.MethodAddressToAmountFunded: contract.NonPayable(f.amountFunded),
		commoncon.MethodFunder:                contract.NonPayable(f.funder),
		commoncon.MethodFundersCount:          contract.NonPayable(f.fundersCount),
		commoncon.MethodFunders:               contract.NonPayable(f.listFunders),
		commoncon.MethodOwner:                 contract.NonPayable(f.getOwner),
		commoncon.MethodPriceFeed:             contract.NonPayable(f.getPriceFeed),
	}
}

func (f *FundMe) fund(ctx context.Context, c contract.Context) (interface{}, error) {
	if err := f.Fund(ctx, c.Caller, c.Value); err != nil {
		return nil, err
	}
	return f.AddressToAmountFunded(c.Caller).Dec(), nil
}

func (f *FundMe) withdraw(ctx context.Context, c contract.Context) (interface{}, error) {
	amount, err := f.Withdraw(ctx, c.Caller)
	if err != nil {
		return nil, err
	}
	return amount.Dec(), nil
}

func (f *FundMe) destroy(ctx context.Context, c contract.Context) (interface{}, error) {
	amount, err := f.Destroy(ctx, c.Caller)
	if err != nil {
		return nil, err
	}
	return amount.Dec(), nil
}

func (f *FundMe) amountFunded(_ context.Context, c contract.Context) (interface{}, error) {
	raw, ok := c.Arg("address")
	if !ok {
		return nil, fmt.Errorf("%w: miss address args", contract.ErrInvalidCallParams)
	}
	addr, ok := meta.ParseAddress(raw)
	if !ok {
		return nil, fmt.Errorf("%w: bad address %q", contract.ErrInvalidCallParams, raw)
	}
	return f.AddressToAmountFunded(addr).Dec(), nil
}

func (f *FundMe) funder(_ context.Context, c contract.Context) (interface{}, error) {
	raw, ok := c.Arg("index")
	if !ok {
		return nil, fmt.Errorf("%w: miss index args", contract.ErrInvalidCallParams)
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad index %q", contract.ErrInvalidCallParams, raw)
	}
	return f.Funder(index)
}

func (f *FundMe) fundersCount(context.Context, contract.Context) (interface{}, error) {
	return f.FundersCount(), nil
}

func (f *FundMe) getOwner(context.Context, contract.Context) (interface{}, error) {
	return f.Owner(), nil
}

func (f *FundMe) getPriceFeed(context.Context, contract.Context) (interface{}, error) {
	return f.PriceFeed(), nil
}

func (f *FundMe) listFunders(context.Context, contract.Context) (interface{}, error) {
	return f.Funders(), nil
}
