package contract

import (
	"fmt"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/global"
)

// 合约日志，同时推送给前端（缓冲区满时丢弃）
func Info(info ...interface{}) {
	log.Info(info...)
	pushLog(fmt.Sprint(info...))
}

func Infof(format string, info ...interface{}) {
	log.Infof(format, info...)
	pushLog(fmt.Sprintf(format, info...))
}

func pushLog(msg string) {
	select {
	case global.ContractLog <- msg:
	default:
	}
}
