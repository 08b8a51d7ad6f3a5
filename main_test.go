package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudflare/cfssl/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/fundme/commoncon"
	"github.com/fundme/config"
	"github.com/fundme/contract"
	"github.com/fundme/meta"
	"github.com/fundme/util"
	"gotest.tools/v3/assert"
)

const (
	owner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	alice = "1111111111111111111111111111111111111111"
	self  = "c000000000000000000000000000000000000000000000000000000000000001"
)

var (
	aliceOnce sync.Once
	alicePrv  []byte
	alicePub  []byte
	aliceErr  error
)

func aliceKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	aliceOnce.Do(func() {
		alicePrv, alicePub, aliceErr = util.GetKeyPair()
	})
	assert.NilError(t, aliceErr)
	return alicePrv, alicePub
}

// alice 对出资调用签名
func fundTask(t *testing.T, value string, nonce uint64) meta.ContractTask {
	t.Helper()
	prv, _ := aliceKeys(t)
	task := meta.ContractTask{
		Name:   commoncon.FundMeContract,
		Method: commoncon.MethodFund,
		Caller: alice,
		Value:  value,
		Nonce:  nonce,
	}
	data, err := task.SignBytes()
	assert.NilError(t, err)
	task.Sign, err = util.RsaSignWithSha256(data, prv)
	assert.NilError(t, err)
	return task
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	_, pub := aliceKeys(t)
	return &config.Config{
		Owner:              owner,
		BlockConfirmations: 6,
		Node:               config.NodeConfig{ID: "N0", DBPath: filepath.Join(t.TempDir(), "db")},
		PriceFeed: config.PriceFeedConfig{
			Mock:          true,
			Address:       "fee0000000000000000000000000000000000001",
			Decimals:      commoncon.MockDecimals,
			InitialAnswer: commoncon.MockInitialAnswer,
		},
		FundMe: config.FundMeConfig{Address: self, MinimumUSD: commoncon.MinimumUSD},
		Redis:  config.RedisConfig{EventKey: commoncon.FundMeEventsKey},
		Log:    config.LogConfig{Level: "info"},
		Accounts: []config.GenesisAccount{
			{Address: owner, Balance: "0"},
			{Address: alice, Balance: "5000000000000000000", PublicKey: string(pub)},
		},
	}
}

func TestNewNodeWithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	n, err := newNode(ctx, cfg)
	assert.NilError(t, err)
	defer n.Close()
	assert.Assert(t, n.events != nil)

	_, err = n.svc.Invoke(ctx, fundTask(t, "100000000000000000", 0))
	assert.NilError(t, err)

	events, err := n.events.Recent(ctx, 0)
	assert.NilError(t, err)
	t.Log(spew.Sdump(events))
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].Type, meta.EventFunded)
	assert.Equal(t, events[0].Args["amount"], "100000000000000000")
	assert.Equal(t, n.fund.FundersCount(), 1)
}

func TestNewNodeRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	n, err := newNode(ctx, cfg)
	assert.NilError(t, err)
	_, err = n.svc.Invoke(ctx, fundTask(t, "1000000000000000000", 0))
	assert.NilError(t, err)
	assert.NilError(t, n.Close())

	// 重启后不会重复发放初始余额
	n, err = newNode(ctx, cfg)
	assert.NilError(t, err)
	defer n.Close()
	assert.Equal(t, n.svc.Accounts().GetBalance(alice).Dec(), "4000000000000000000")
	assert.Equal(t, n.fund.Held().Dec(), "1000000000000000000")
	assert.Equal(t, n.clientServer() != nil, true)

	// nonce 随账户落盘，重启后旧签名不能重放
	_, err = n.svc.Invoke(ctx, fundTask(t, "1000000000000000000", 0))
	assert.ErrorIs(t, err, contract.ErrBadNonce)
	_, err = n.svc.Invoke(ctx, fundTask(t, "1000000000000000000", 1))
	assert.NilError(t, err)
}

func TestNewNodeRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Owner = "0x0000000000000000000000000000000000000000"
	_, err := newNode(ctx, cfg)
	assert.ErrorContains(t, err, "invalid configuration")

	cfg = testConfig(t)
	cfg.Accounts = []config.GenesisAccount{{Address: alice, Balance: "lots"}}
	_, err = newNode(ctx, cfg)
	assert.ErrorContains(t, err, "bad genesis balance")

	cfg = testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err = newNode(ctx, cfg)
	assert.Assert(t, err != nil)

	cfg = testConfig(t)
	cfg.PriceFeed.Mock = false
	_, err = newNode(ctx, cfg)
	assert.ErrorContains(t, err, "price feed url is empty")
}

func TestSetLogLevel(t *testing.T) {
	defer setLogLevel("info")
	setLogLevel("DEBUG")
	assert.Equal(t, log.Level, log.LevelDebug)
	setLogLevel("warn")
	assert.Equal(t, log.Level, log.LevelWarning)
	setLogLevel("unknown")
	assert.Equal(t, log.Level, log.LevelInfo)
}
