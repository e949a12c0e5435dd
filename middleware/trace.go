// Package middleware: gin middleware for the control plane.
// file: middleware/trace.go
package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gin-gonic/gin"
)

// Trace opens an X-Ray segment per control-plane request. Only installed when
// tracing is enabled via the environment, so local runs carry no daemon
// dependency.
func Trace(segmentName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, seg := xray.BeginSegment(c.Request.Context(), segmentName)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		seg.Close(nil)
	}
}
