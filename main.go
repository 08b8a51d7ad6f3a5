package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/account"
	"github.com/fundme/client"
	"github.com/fundme/config"
	"github.com/fundme/contract"
	"github.com/fundme/contract/template/fundme"
	"github.com/fundme/event"
	"github.com/fundme/global"
	"github.com/fundme/levelDB"
	"github.com/fundme/meta"
	"github.com/fundme/network"
	"github.com/fundme/oracle"
	"github.com/fundme/redis"
	"github.com/fundme/util"
	"github.com/holiman/uint256"
)

func main() {
	if err := Start(); err != nil {
		log.Fatal(err)
	}
}

func Start() error {
	configPath := flag.String("c", "", "config file path")
	flag.Parse()

	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	global.RootDir = dir

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	n, err := newNode(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- network.ListenContract(cfg.Node.ContractAddr, n.svc) }()
	go func() { errCh <- n.clientServer().ListenRequest(cfg.Node.ClientAddr) }()
	return <-errCh
}

// 节点持有的全部组件
type node struct {
	db     *levelDB.DB
	svc    *contract.Service
	fund   *fundme.FundMe
	events *redis.Sink // 未开启redis时为nil
}

func newNode(ctx context.Context, cfg *config.Config) (*node, error) {
	setLogLevel(cfg.Log.Level)
	global.NodeID = cfg.Node.ID

	owner, ok := meta.ParseAddress(cfg.Owner)
	if !ok {
		return nil, fmt.Errorf("%w: owner %q", fundme.ErrInvalidConfiguration, cfg.Owner)
	}
	feedAddr, ok := meta.ParseAddress(cfg.PriceFeed.Address)
	if !ok {
		return nil, fmt.Errorf("%w: price feed %q", fundme.ErrInvalidConfiguration, cfg.PriceFeed.Address)
	}
	self, ok := meta.ParseAddress(cfg.FundMe.Address)
	if !ok {
		return nil, fmt.Errorf("%w: fundme address %q", fundme.ErrInvalidConfiguration, cfg.FundMe.Address)
	}

	dbPath := cfg.Node.DBPath
	if !filepath.IsAbs(dbPath) && global.RootDir != "" {
		dbPath = filepath.Join(global.RootDir, dbPath)
	}
	if util.FileExists(dbPath) {
		log.Infof("使用已有数据库 %s", dbPath)
	}
	db, err := levelDB.InitDB(dbPath)
	if err != nil {
		return nil, err
	}

	sink, events, err := newSink(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	accounts := account.New()
	svc := contract.NewService(accounts, db, sink)
	if err := svc.LoadAccounts(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, g := range cfg.Accounts {
		addr, ok := meta.ParseAddress(g.Address)
		if !ok {
			_ = db.Close()
			return nil, fmt.Errorf("config: bad genesis address %q", g.Address)
		}
		balance, err := uint256.FromDecimal(g.Balance)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("config: bad genesis balance %q: %w", g.Balance, err)
		}
		if _, err := svc.CreateAccount(addr, g.PublicKey, balance); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	feed, err := newFeed(cfg.PriceFeed)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	fm, err := fundme.New(fundme.Config{
		Owner:      owner,
		PriceFeed:  feedAddr,
		Self:       self,
		MinimumUSD: fundme.USD(cfg.FundMe.MinimumUSD),
	}, feed, accounts, fundme.WithEmitter(svc.Journal()))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := svc.Deploy(fm, self); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("FundMe 部署完成，owner %s，预言机 %s，等待 %d 个确认", owner, feedAddr, cfg.BlockConfirmations)
	return &node{db: db, svc: svc, fund: fm, events: events}, nil
}

func (n *node) clientServer() *client.Server {
	s := client.NewServer(n.svc, n.db)
	if n.events != nil {
		s.WithEvents(n.events)
	}
	return s
}

func (n *node) Close() error {
	if n.events != nil {
		if err := n.events.Close(); err != nil {
			log.Errorf("redis close err: %s", err)
		}
	}
	return n.db.Close()
}

// 本地开发使用模拟预言机
func newFeed(cfg config.PriceFeedConfig) (oracle.Feed, error) {
	if cfg.Mock {
		log.Infof("使用模拟预言机，精度 %d，初始价格 %d", cfg.Decimals, cfg.InitialAnswer)
		return oracle.NewMockV3Aggregator(cfg.Decimals, big.NewInt(cfg.InitialAnswer)), nil
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: price feed url is empty", fundme.ErrInvalidConfiguration)
	}
	return oracle.NewHTTPFeed(cfg.URL, time.Duration(cfg.TimeoutSecond)*time.Second), nil
}

// 合约事件除了记录在日志中，还可以推送到redis
func newSink(ctx context.Context, cfg config.RedisConfig) (event.Sink, *redis.Sink, error) {
	sinks := event.Multi{logSink{}}
	if !cfg.Enabled {
		return sinks, nil, nil
	}
	s := redis.NewSink(redis.NewClient(cfg.Addr, cfg.Password, cfg.DB), cfg.EventKey)
	if err := s.Ping(ctx); err != nil {
		log.Errorf("redis %s 连接失败: %s", cfg.Addr, err)
		return nil, nil, err
	}
	return append(sinks, s), s, nil
}

type logSink struct{}

func (logSink) Publish(_ context.Context, e meta.Event) error {
	contract.Infof("事件 %s.%s %v", e.Contract, e.Type, e.Args)
	return nil
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.Level = log.LevelDebug
	case "warn", "warning":
		log.Level = log.LevelWarning
	case "error":
		log.Level = log.LevelError
	default:
		log.Level = log.LevelInfo
	}
}
