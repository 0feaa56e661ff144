package middleware

import "github.com/gin-gonic/gin"

// apiHeaders suit a JSON API whose responses and link URLs carry credentials:
// nothing may be rendered, framed, cached or leaked through Referer.
var apiHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
	{"Pragma", "no-cache"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
}

func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range apiHeaders {
			c.Header(h[0], h[1])
		}
		c.Next()
	}
}
