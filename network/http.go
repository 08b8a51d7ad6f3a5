package network

import (
	"encoding/json"
	"net/http"

	"github.com/cloudflare/cfssl/log"
)

const BadRequest = "Request Param Invalid"

// 解析出Get请求中的指定参数
func ParseGetParam(key string, request *http.Request) string {
	params := request.URL.Query()
	v := params.Get(key)
	return v
}

// 返回请求参数错误
func BadRequestResponse(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusBadRequest)
	_, _ = writer.Write([]byte(BadRequest))
}

// 解析出post请求的body
func ParsePostBody(request *http.Request, v interface{}) error {
	defer request.Body.Close()
	return json.NewDecoder(request.Body).Decode(v)
}

func writeJSON(writer http.ResponseWriter, status int, v interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		log.Errorf("write response err: %s", err)
	}
}
