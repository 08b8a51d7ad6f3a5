package client

import (
	"context"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/meta"
	"github.com/gin-gonic/gin"
)

// 客户端保存注册账户的私钥，*levelDB.DB 实现了该接口
type KeyStore interface {
	DBGet(key string) ([]byte, error)
	DBPut(key string, value []byte) error
	DBDelete(key string) error
}

// 读取已发布的合约事件，*redis.Sink 实现了该接口
type EventReader interface {
	Recent(ctx context.Context, n int64) ([]meta.Event, error)
}

// 面向用户的http服务
type Server struct {
	svc      *contract.Service
	keys     KeyStore
	events   EventReader
	contract string
}

// keys 为 nil 时不保存私钥
func NewServer(svc *contract.Service, keys KeyStore) *Server {
	return &Server{svc: svc, keys: keys, contract: commoncon.FundMeContract}
}

// 开启 /events 查询
func (s *Server) WithEvents(r EventReader) *Server {
	s.events = r
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(Cors())                                 // 使用跨域组件
	r.POST("/fund", s.fund)                       // 向众筹合约出资
	r.POST("/withdraw", s.withdraw)               // owner提取全部资金
	r.POST("/destroy", s.destroy)                 // owner销毁合约
	r.POST("/registerAccount", s.registerAccount) // 注册账户
	r.GET("/balance", s.balance)                  // 查询出资金额
	r.GET("/funder", s.funder)                    // 按下标查询出资人
	r.GET("/funders", s.funders)                  // 所有出资人
	r.GET("/owner", s.owner)                      // 合约owner
	r.GET("/priceFeed", s.priceFeed)              // 预言机地址
	r.GET("/getAllAccounts", s.getAllAccounts)    // 获取所有的账户
	r.GET("/events", s.recentEvents)              // 最近的合约事件
	r.GET("/getLog", getLog)                      // 与前端建立websocket
	return r
}

// 监听用户请求
func (s *Server) ListenRequest(addr string) error {
	log.Info(" ---------------------------------------------------------------------------------")
	log.Infof("|  众筹客户端已启动，监听地址 %s  |", addr)
	log.Info(" ---------------------------------------------------------------------------------")
	return s.Router().Run(addr)
}
