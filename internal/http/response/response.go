package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const requestIDKey = "request_id"

// Response 统一响应结构，HTTP 状态码恒为 200，业务结果看 status_code
type Response struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ErrorData 失败响应的 data 部分
type ErrorData struct {
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// BuildPagination 构建分页信息
func BuildPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, Response{StatusCode: CodeOK, Msg: "success", Data: data})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	write(c, Response{StatusCode: CodeOK, Msg: msg, Data: data})
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	write(c, Response{StatusCode: CodeOK, Msg: "success", Data: data, Pagination: &pagination})
}

// Fail 失败响应，附带机器可读的错误类别与细分原因
func Fail(c *gin.Context, statusCode int, msg, kind, reason string) {
	write(c, Response{
		StatusCode: statusCode,
		Msg:        msg,
		Data: ErrorData{
			Kind:      kind,
			Reason:    reason,
			RequestID: requestID(c),
		},
	})
}

func write(c *gin.Context, body Response) {
	c.JSON(http.StatusOK, body)
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}
