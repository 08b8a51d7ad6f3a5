package network

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fundme/account"
	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/contract/template/fundme"
	"github.com/fundme/meta"
	"github.com/fundme/oracle"
	"github.com/fundme/util"
	"github.com/holiman/uint256"
	"gotest.tools/v3/assert"
)

const (
	owner     meta.Address = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	alice     meta.Address = "1111111111111111111111111111111111111111"
	feedAddr  meta.Address = "fee0000000000000000000000000000000000001"
	fundmeAcc meta.Address = "c000000000000000000000000000000000000000000000000000000000000001"

	tenthEther = "100000000000000000"
)

type keyPair struct{ prv, pub []byte }

var (
	keysOnce sync.Once
	keys     map[meta.Address]keyPair
	keysErr  error
)

func keyOf(t *testing.T, addr meta.Address) keyPair {
	t.Helper()
	keysOnce.Do(func() {
		keys = map[meta.Address]keyPair{}
		for _, a := range []meta.Address{owner, alice} {
			prv, pub, err := util.GetKeyPair()
			if err != nil {
				keysErr = err
				return
			}
			keys[a] = keyPair{prv: prv, pub: pub}
		}
	})
	assert.NilError(t, keysErr)
	return keys[addr]
}

// 用 prv 对调用签名，nonce 取调用者账户当前值
func signed(t *testing.T, svc *contract.Service, name string, req meta.ContractRequest, prv []byte) meta.ContractRequest {
	t.Helper()
	caller, ok := meta.ParseAddress(req.Caller)
	assert.Assert(t, ok)
	acc, _ := svc.Accounts().GetAccount(caller)
	req.Nonce = acc.Nonce
	data, err := meta.ContractTask{
		Name:   name,
		Method: req.Method,
		Args:   req.Args,
		Caller: caller,
		Value:  req.Value,
		Nonce:  req.Nonce,
	}.SignBytes()
	assert.NilError(t, err)
	sign, err := util.RsaSignWithSha256(data, prv)
	assert.NilError(t, err)
	req.Sign = hex.EncodeToString(sign)
	return req
}

func newService(t *testing.T) *contract.Service {
	t.Helper()
	accounts := account.New()
	accounts.CreateAccount(owner, string(keyOf(t, owner).pub), new(uint256.Int))
	accounts.CreateAccount(alice, string(keyOf(t, alice).pub), uint256.MustFromDecimal("1000000000000000000"))
	svc := contract.NewService(accounts, nil, nil)

	feed := oracle.NewMockV3Aggregator(commoncon.MockDecimals, big.NewInt(commoncon.MockInitialAnswer))
	fm, err := fundme.New(fundme.Config{Owner: owner, PriceFeed: feedAddr, Self: fundmeAcc}, feed, accounts, fundme.WithEmitter(svc.Journal()))
	assert.NilError(t, err)
	assert.NilError(t, svc.Deploy(fm, fundmeAcc))
	return svc
}

func post(t *testing.T, svc *contract.Service, name string, body []byte) (*httptest.ResponseRecorder, meta.ContractResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contract/"+name, bytes.NewReader(body))
	w := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(w, req)
	var res meta.ContractResponse
	if w.Code != http.StatusBadRequest {
		assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	assert.NilError(t, err)
	return b
}

func TestInvokeFund(t *testing.T) {
	svc := newService(t)

	w, res := post(t, svc, commoncon.FundMeContract, mustJSON(t, signed(t, svc, commoncon.FundMeContract, meta.ContractRequest{
		Method: commoncon.MethodFund,
		Caller: "0x" + alice.String(),
		Value:  tenthEther,
	}, keyOf(t, alice).prv)))
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, res.Error, "")
	assert.Equal(t, res.Receipt.Result, interface{}(tenthEther))
	assert.Equal(t, res.Receipt.Events[0].Type, meta.EventFunded)
	assert.Equal(t, svc.Accounts().GetBalance(fundmeAcc).Dec(), tenthEther)
}

func TestInvokeRejected(t *testing.T) {
	svc := newService(t)

	w, res := post(t, svc, commoncon.FundMeContract, mustJSON(t, signed(t, svc, commoncon.FundMeContract, meta.ContractRequest{
		Method: commoncon.MethodWithdraw,
		Caller: alice.String(),
	}, keyOf(t, alice).prv)))
	assert.Equal(t, w.Code, http.StatusOK)
	assert.ErrorContains(t, fundErr(res), "not the owner")
	assert.Assert(t, res.Receipt == nil)

	w, res = post(t, svc, "unknown", mustJSON(t, meta.ContractRequest{
		Method: commoncon.MethodFund,
		Caller: alice.String(),
	}))
	assert.Equal(t, w.Code, http.StatusOK)
	assert.ErrorContains(t, fundErr(res), "contract not found")
}

func TestInvokeUnauthorized(t *testing.T) {
	svc := newService(t)
	fund := signed(t, svc, commoncon.FundMeContract, meta.ContractRequest{
		Method: commoncon.MethodFund,
		Caller: alice.String(),
		Value:  tenthEther,
	}, keyOf(t, alice).prv)
	w, _ := post(t, svc, commoncon.FundMeContract, mustJSON(t, fund))
	assert.Equal(t, w.Code, http.StatusOK)

	destroy := meta.ContractRequest{Method: commoncon.MethodDestroy, Caller: owner.String()}
	ahead := signed(t, svc, commoncon.FundMeContract, destroy, keyOf(t, owner).prv)
	ahead.Nonce++
	cases := map[string]meta.ContractRequest{
		"unsigned":  destroy,
		"wrong key": signed(t, svc, commoncon.FundMeContract, destroy, keyOf(t, alice).prv),
		"replay":    fund,
		"bad nonce": ahead,
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w, res := post(t, svc, commoncon.FundMeContract, mustJSON(t, req))
			assert.Equal(t, w.Code, http.StatusUnauthorized)
			assert.Assert(t, res.Error != "")
		})
	}

	// 合约未被销毁，资金仍在
	assert.Equal(t, svc.Accounts().GetBalance(fundmeAcc).Dec(), tenthEther)
	w, res := post(t, svc, commoncon.FundMeContract, mustJSON(t, signed(t, svc, commoncon.FundMeContract, meta.ContractRequest{
		Method: commoncon.MethodFund,
		Caller: alice.String(),
		Value:  tenthEther,
	}, keyOf(t, alice).prv)))
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, res.Error, "")
}

type stringErr string

func (e stringErr) Error() string { return string(e) }

func fundErr(res meta.ContractResponse) error {
	if res.Error == "" {
		return nil
	}
	return stringErr(res.Error)
}

func TestInvokeBadRequest(t *testing.T) {
	svc := newService(t)
	cases := map[string][]byte{
		"bad json":     []byte("{"),
		"bad caller":   mustJSON(t, meta.ContractRequest{Method: commoncon.MethodFund, Caller: "xyz"}),
		"miss method":  mustJSON(t, meta.ContractRequest{Caller: alice.String()}),
		"bad value":    mustJSON(t, meta.ContractRequest{Method: commoncon.MethodFund, Caller: alice.String(), Value: "1e18"}),
		"bad sign":     mustJSON(t, meta.ContractRequest{Method: commoncon.MethodFund, Caller: alice.String(), Sign: "zz"}),
		"unknown user": mustJSON(t, meta.ContractRequest{Method: commoncon.MethodFund, Caller: "9999999999999999999999999999999999999999"}),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := post(t, svc, commoncon.FundMeContract, body)
			assert.Equal(t, w.Code, http.StatusBadRequest)
			assert.Equal(t, w.Body.String(), BadRequest)
		})
	}
}

func TestQuery(t *testing.T) {
	svc := newService(t)
	_, _ = post(t, svc, commoncon.FundMeContract, mustJSON(t, signed(t, svc, commoncon.FundMeContract, meta.ContractRequest{
		Method: commoncon.MethodFund,
		Caller: alice.String(),
		Value:  tenthEther,
	}, keyOf(t, alice).prv)))

	get := func(target string) (*httptest.ResponseRecorder, meta.ContractResponse) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		NewRouter(svc).ServeHTTP(w, req)
		var res meta.ContractResponse
		if w.Code == http.StatusOK {
			assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &res))
		}
		return w, res
	}

	_, res := get("/contract/fundme/" + commoncon.MethodAddressToAmountFunded + "?address=" + alice.String())
	assert.Equal(t, res.Receipt.Result, interface{}(tenthEther))

	_, res = get("/contract/fundme/" + commoncon.MethodFundersCount)
	assert.Equal(t, res.Receipt.Result, interface{}(float64(1)))

	_, res = get("/contract/fundme/" + commoncon.MethodFunder + "?index=4")
	assert.ErrorContains(t, fundErr(res), "out of range")

	w, _ := get("/contract/fundme/" + commoncon.MethodAddressToAmountFunded + "?address=nope")
	assert.Equal(t, w.Code, http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodPut, "/contract/fundme", nil)
	rec := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusMethodNotAllowed)
}
