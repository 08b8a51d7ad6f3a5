package client

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/commoncon"
	"github.com/fundme/levelDB"
	"github.com/fundme/meta"
	"github.com/fundme/util"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method

		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization") //自定义 Header
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if method == http.MethodOptions {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization") //自定义 Header
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.AbortWithStatus(http.StatusNoContent)
		}

		c.Next()
	}
}

// 用户发起的调用
type callRequest struct {
	Caller string `json:"caller" binding:"required"`
	Value  string `json:"value"` // 十进制wei
	Nonce  uint64 `json:"nonce"` // 调用者账户当前的nonce，见 /getAllAccounts
	Sign   string `json:"sign"`  // 对 ContractTask.SignBytes 的签名，十六进制
}

// 账户信息，私钥从 client 本地获取
type accountView struct {
	meta.Account
	PrivateKey string `json:"private_key,omitempty"`
}

func (s *Server) fund(ctx *gin.Context) {
	s.invoke(ctx, commoncon.MethodFund, true)
}

func (s *Server) withdraw(ctx *gin.Context) {
	s.invoke(ctx, commoncon.MethodWithdraw, false)
}

func (s *Server) destroy(ctx *gin.Context) {
	s.invoke(ctx, commoncon.MethodDestroy, false)
}

func (s *Server) invoke(ctx *gin.Context, method string, payable bool) {
	req := callRequest{}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Errorf("[%s] bind request err: %s", method, err)
		ctx.JSON(http.StatusOK, errResponse("Invalid param"))
		return
	}
	caller, ok := meta.ParseAddress(req.Caller)
	if !ok {
		ctx.JSON(http.StatusOK, errResponse("发起地址不合法"))
		return
	}
	if !payable && req.Value != "" && req.Value != "0" {
		ctx.JSON(http.StatusOK, errResponse("该方法不接受转账"))
		return
	}
	sign, err := hex.DecodeString(req.Sign)
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse("签名格式错误"))
		return
	}

	receipt, err := s.svc.Invoke(ctx.Request.Context(), meta.ContractTask{
		Name:   s.contract,
		Method: method,
		Caller: caller,
		Value:  req.Value,
		Nonce:  req.Nonce,
		Sign:   sign,
	})
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(receipt))
}

// 只读查询
func (s *Server) query(ctx context.Context, method string, args map[string]string) (interface{}, error) {
	return s.svc.Query(ctx, meta.ContractTask{Name: s.contract, Method: method, Args: args})
}

func (s *Server) respondQuery(ctx *gin.Context, method string, args map[string]string) {
	res, err := s.query(ctx.Request.Context(), method, args)
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(res))
}

func (s *Server) balance(ctx *gin.Context) {
	s.respondQuery(ctx, commoncon.MethodAddressToAmountFunded, map[string]string{"address": ctx.Query("address")})
}

func (s *Server) funder(ctx *gin.Context) {
	s.respondQuery(ctx, commoncon.MethodFunder, map[string]string{"index": ctx.Query("index")})
}

func (s *Server) funders(ctx *gin.Context) {
	s.respondQuery(ctx, commoncon.MethodFunders, nil)
}

func (s *Server) owner(ctx *gin.Context) {
	s.respondQuery(ctx, commoncon.MethodOwner, nil)
}

func (s *Server) priceFeed(ctx *gin.Context) {
	s.respondQuery(ctx, commoncon.MethodPriceFeed, nil)
}

// 账户注册
func (s *Server) registerAccount(ctx *gin.Context) {
	//首先生成公私钥
	priKey, pubKey, err := util.GetKeyPair()
	if err != nil {
		log.Errorf("[registerAccount] generate key err: %s", err)
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	//将公钥hash作为账户地址
	address, err := util.AddressFromPublicKey(pubKey)
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}

	// client 存储账户的私钥
	keyName := address.String() + commoncon.AccountsPrivateKeySuffix
	if s.keys != nil {
		if err := s.keys.DBPut(keyName, priKey); err != nil {
			log.Errorf("[registerAccount] save private key err: %s", err)
			ctx.JSON(http.StatusOK, errResponse(err.Error()))
			return
		}
	}
	if _, err := s.svc.CreateAccount(address, string(pubKey), uint256.MustFromDecimal(commoncon.InitBalance)); err != nil {
		// 账户创建失败时不保留私钥
		if s.keys != nil {
			if err := s.keys.DBDelete(keyName); err != nil {
				log.Errorf("[registerAccount] delete private key err: %s", err)
			}
		}
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	log.Infof("注册账户 %s", address)

	res := meta.ChainAccount{
		AccountAddress: address,
		PublicKey:      string(pubKey),
		PrivateKey:     string(priKey),
	}
	ctx.JSON(http.StatusOK, goodResponse(res))
}

// 获取所有的账户
func (s *Server) getAllAccounts(ctx *gin.Context) {
	accounts := s.svc.Accounts()
	all := []accountView{}
	for _, address := range accounts.GetTotalAddress() {
		acc, ok := accounts.GetAccount(address)
		if !ok {
			continue
		}
		view := accountView{Account: acc}
		if s.keys != nil && !acc.IsContract {
			key, err := s.keys.DBGet(address.String() + commoncon.AccountsPrivateKeySuffix)
			switch {
			case err == nil:
				view.PrivateKey = string(key)
			case !errors.Is(err, levelDB.ErrNotFound):
				log.Errorf("[getAllAccounts] read private key err: %s", err)
			}
		}
		all = append(all, view)
	}
	ctx.JSON(http.StatusOK, goodResponse(all))
}

// 最近n条事件，n缺省时返回全部
func (s *Server) recentEvents(ctx *gin.Context) {
	if s.events == nil {
		ctx.JSON(http.StatusOK, errResponse("事件存储未开启"))
		return
	}
	n := int64(0)
	if raw := ctx.Query("n"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			ctx.JSON(http.StatusOK, errResponse("Invalid param"))
			return
		}
		n = v
	}
	events, err := s.events.Recent(ctx.Request.Context(), n)
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(events))
}

func goodResponse(data interface{}) meta.HttpResponse {
	return meta.HttpResponse{
		Error: "",
		Data:  data,
		Code:  commoncon.HttpCodeOK,
	}
}

func errResponse(err string) meta.HttpResponse {
	return meta.HttpResponse{
		Error: err,
		Data:  nil,
		Code:  commoncon.HttpCodeOK,
	}
}
