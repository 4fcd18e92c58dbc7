package httpapi

import (
	"crypto/subtle"
	"net/http"

	"voicegate/internal/carrier"

	"github.com/gin-gonic/gin"
)

const (
	carrierSignatureHeader = "X-Twilio-Signature"
	vendorSecretHeader     = "X-Vendor-Secret"
)

// VerifyCarrierSignature rejects webhook posts that do not carry a valid
// carrier signature. An empty authToken disables the check (local/dev);
// production config requires it.
func VerifyCarrierSignature(authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid form"})
			return
		}

		// Reconstruct the public URL the carrier signed. Behind a proxy the
		// original scheme arrives via X-Forwarded-Proto.
		scheme := "https"
		if c.Request.TLS == nil {
			if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
				scheme = fwd
			} else {
				scheme = "http"
			}
		}
		fullURL := scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()

		sig := c.GetHeader(carrierSignatureHeader)
		if !carrier.ValidateSignature(authToken, fullURL, c.Request.PostForm, sig) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

// VerifyVendorSecret authenticates the vendor's completion webhook with a
// shared secret header. Empty secret disables the check (local/dev).
func VerifyVendorSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(vendorSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}
