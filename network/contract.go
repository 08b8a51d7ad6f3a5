package network

import (
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/contract"
	"github.com/fundme/meta"
	"github.com/gorilla/mux"
)

// 节点对外提供的合约调用接口
func NewRouter(svc *contract.Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/contract/{name}", invokeHandler(svc)).Methods(http.MethodPost)
	r.HandleFunc("/contract/{name}/{method}", queryHandler(svc)).Methods(http.MethodGet)
	return r
}

func ListenContract(addr string, svc *contract.Service) error {
	server := &http.Server{
		Handler:      NewRouter(svc),
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Infof("合约调用接口已启动，监听地址 %s", addr)
	return server.ListenAndServe()
}

// POST /contract/{name}，body 为 ContractRequest
func invokeHandler(svc *contract.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		req := meta.ContractRequest{}
		if err := ParsePostBody(r, &req); err != nil {
			log.Errorf("[invoke] decode body err: %s", err)
			BadRequestResponse(w)
			return
		}
		caller, ok := meta.ParseAddress(req.Caller)
		if !ok || req.Method == "" {
			BadRequestResponse(w)
			return
		}
		sign, err := hex.DecodeString(req.Sign)
		if err != nil {
			BadRequestResponse(w)
			return
		}

		receipt, err := svc.Invoke(r.Context(), meta.ContractTask{
			Name:   name,
			Method: req.Method,
			Args:   req.Args,
			Caller: caller,
			Value:  req.Value,
			Nonce:  req.Nonce,
			Sign:   sign,
		})
		if errors.Is(err, contract.ErrInvalidCallParams) {
			BadRequestResponse(w)
			return
		}
		if errors.Is(err, contract.ErrInvalidSignature) || errors.Is(err, contract.ErrBadNonce) {
			writeJSON(w, http.StatusUnauthorized, meta.ContractResponse{Error: err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusOK, meta.ContractResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, meta.ContractResponse{Receipt: receipt})
	}
}

// GET /contract/{name}/{method}?k=v，只读查询
func queryHandler(svc *contract.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		args := map[string]string{}
		for key := range r.URL.Query() {
			args[key] = ParseGetParam(key, r)
		}

		res, err := svc.Query(r.Context(), meta.ContractTask{
			Name:   vars["name"],
			Method: vars["method"],
			Args:   args,
		})
		if errors.Is(err, contract.ErrInvalidCallParams) {
			BadRequestResponse(w)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusOK, meta.ContractResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, meta.ContractResponse{Receipt: &meta.Receipt{
			Contract: vars["name"],
			Method:   vars["method"],
			Result:   res,
		}})
	}
}
