package config

import (
	"fmt"
	"strings"

	"github.com/fundme/commoncon"
	"github.com/fundme/global"
	viper2 "github.com/spf13/viper"
)

type Config struct {
	Owner              string           `mapstructure:"owner"`               // 部署者地址
	BlockConfirmations int              `mapstructure:"block_confirmations"` // 部署确认数，只记录在日志中
	Node               NodeConfig       `mapstructure:"node"`
	PriceFeed          PriceFeedConfig  `mapstructure:"price_feed"`
	FundMe             FundMeConfig     `mapstructure:"fundme"`
	Redis              RedisConfig      `mapstructure:"redis"`
	Log                LogConfig        `mapstructure:"log"`
	Accounts           []GenesisAccount `mapstructure:"accounts"` // 首次启动时创建的账户
}

type NodeConfig struct {
	ID           string `mapstructure:"id"`
	DBPath       string `mapstructure:"db_path"`
	ClientAddr   string `mapstructure:"client_addr"`   // 用户http接口
	ContractAddr string `mapstructure:"contract_addr"` // 合约调用接口
}

type PriceFeedConfig struct {
	Mock          bool   `mapstructure:"mock"`           // 使用模拟预言机
	Address       string `mapstructure:"address"`        // 预言机地址
	URL           string `mapstructure:"url"`            // 非mock时的价格接口
	Decimals      uint8  `mapstructure:"decimals"`       // mock精度
	InitialAnswer int64  `mapstructure:"initial_answer"` // mock初始价格
	TimeoutSecond int    `mapstructure:"timeout_second"`
}

type FundMeConfig struct {
	Address    string `mapstructure:"address"`     // 合约账户地址
	MinimumUSD uint64 `mapstructure:"minimum_usd"` // 整数美元
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	EventKey string `mapstructure:"event_key"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type GenesisAccount struct {
	Address   string `mapstructure:"address"`
	Balance   string `mapstructure:"balance"`    // 十进制wei
	PublicKey string `mapstructure:"public_key"` // PEM公钥，为空时该账户不能发起调用
}

func newViper() *viper2.Viper {
	viper := viper2.New()
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("FUNDME")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("block_confirmations", 1)
	viper.SetDefault("node.id", "N0")
	viper.SetDefault("node.db_path", "levelDB/db/path/N0")
	viper.SetDefault("node.client_addr", commoncon.ClientToUserAddr)
	viper.SetDefault("node.contract_addr", commoncon.ClientToNodeAddr)
	viper.SetDefault("price_feed.mock", true)
	viper.SetDefault("price_feed.decimals", commoncon.MockDecimals)
	viper.SetDefault("price_feed.initial_answer", commoncon.MockInitialAnswer)
	viper.SetDefault("price_feed.timeout_second", 5)
	viper.SetDefault("fundme.minimum_usd", commoncon.MinimumUSD)
	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.event_key", commoncon.FundMeEventsKey)
	viper.SetDefault("log.level", "info")
	return viper
}

// 读取配置文件，path 为空时读取 RootDir/config/config.yaml
func Load(path string) (*Config, error) {
	viper := newViper()
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(global.RootDir + "/config/")
	}
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Owner == "" {
		return fmt.Errorf("config: owner is required")
	}
	if c.PriceFeed.Address == "" {
		return fmt.Errorf("config: price_feed.address is required")
	}
	if !c.PriceFeed.Mock && c.PriceFeed.URL == "" {
		return fmt.Errorf("config: price_feed.url is required when mock is false")
	}
	if c.FundMe.Address == "" {
		return fmt.Errorf("config: fundme.address is required")
	}
	return nil
}
