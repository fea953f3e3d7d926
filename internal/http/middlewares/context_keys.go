package middlewares

const (
	CtxRequestID = "request_id"
	CtxService   = "auth.service"
)
