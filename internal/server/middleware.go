package server

import (
	"compress/gzip"
	"net/http"
	"runtime/debug"
	"strings"

	"taskmanager/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

const ctxUserIDKey = "userID"

// AuthRequired gates every task route behind a bearer token. A missing
// token and an unverifiable token get distinct messages; on success the
// decoded user id is stored in the request context and nothing below the
// guard re-verifies the token.
func (api *TaskAPI) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")

		var token string
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			api.abortWithError(ctx, http.StatusUnauthorized, errors.ErrNoToken)
			return
		}

		userID, err := VerifyToken(token, api.cfg.JWTSecret)
		if err != nil {
			api.abortWithError(ctx, http.StatusUnauthorized, errors.ErrInvalidToken)
			return
		}

		ctx.Set(ctxUserIDKey, userID)
		ctx.Next()
	}
}

// callerID returns the authenticated user id placed by AuthRequired.
func callerID(ctx *gin.Context) string {
	return ctx.GetString(ctxUserIDKey)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (api *TaskAPI) respondError(ctx *gin.Context, status int, err error) {
	resp := errorResponse{Success: false, Message: err.Error()}
	if status >= http.StatusInternalServerError && !api.cfg.IsProduction() {
		resp.Stack = string(debug.Stack())
	}
	ctx.JSON(status, resp)
}

func (api *TaskAPI) abortWithError(ctx *gin.Context, status int, err error) {
	resp := errorResponse{Success: false, Message: err.Error()}
	ctx.AbortWithStatusJSON(status, resp)
}

// Recovery is the boundary handler: nothing is allowed to crash the
// process. Production gets a generic message, everything else the full
// error text and stack.
func (api *TaskAPI) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(ctx *gin.Context, recovered interface{}) {
		resp := errorResponse{Success: false, Message: "Something went wrong!"}
		if !api.cfg.IsProduction() {
			if err, ok := recovered.(error); ok {
				resp.Message = err.Error()
			}
			resp.Stack = string(debug.Stack())
		}
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	})
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gw *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	n, err := w.gw.Write(data)
	if err != nil {
		return n, errors.ErrGzipFailed
	}
	return n, nil
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// GzipResponseCompress compresses JSON responses for clients that accept
// gzip. HEAD responses carry no body and pass through untouched.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead {
			ctx.Next()
			return
		}

		acceptEnc := strings.ToLower(ctx.GetHeader("Accept-Encoding"))
		if !strings.Contains(acceptEnc, "gzip") {
			ctx.Next()
			return
		}

		ctx.Writer.Header().Set("Content-Encoding", "gzip")
		ctx.Writer.Header().Set("Vary", "Accept-Encoding")
		ctx.Writer.Header().Del("Content-Length")

		gw := gzip.NewWriter(ctx.Writer)
		w := &gzipResponseWriter{ResponseWriter: ctx.Writer, gw: gw}
		ctx.Writer = w

		defer func() {
			if r := recover(); r != nil {
				// a panic unwinds to the recovery handler above this
				// middleware; hand it the plain writer so the error body
				// reaches the client uncompressed instead of as a
				// truncated gzip stream
				if !w.Written() {
					ctx.Writer = w.ResponseWriter
					ctx.Writer.Header().Del("Content-Encoding")
					ctx.Writer.Header().Del("Vary")
				} else {
					_ = gw.Close()
				}
				panic(r)
			}
			if err := gw.Close(); err != nil {
				_ = ctx.Error(errors.ErrGzipFailed)
			}
		}()

		ctx.Next()
	}
}
